package sites

// Cafe24 matches the default skin of cafe24-hosted storefronts.
var Cafe24 = Config{
	Name:             "cafe24",
	PageParam:        "page",
	ProductIDPattern: `(?:product_no=|/product/[^/]+/)(\d+)`,
	CategorySep:      " > ",
	ImageAttr:        "ec-data-src",
	Selectors: Selectors{
		Product:      "ul.prdList > li",
		Link:         "div.thumbnail a, div.prdImg a",
		Name:         "div.headingArea h2, div.infoArea h2",
		Category:     "div.xans-product-headcategory li:not(:first-child) a",
		Thumbnail:    "div.keyImg img, img.BigImage",
		Price:        "#span_product_price_text",
		SalePrice:    "#span_product_price_sale",
		Delivery:     "tr:has(th:contains('배송비')) td",
		Quantity:     "#quantity",
		SoldOut:      "div.xans-product-action .btnSoldout:not(.displaynone)",
		Option:       "select[id^='product_option_id'] option",
		DetailImages: "#prdDetail",
		DetailImage:  "#prdDetail img",
	},
	Options: OptionConfig{
		Dropdown: "select#product_option_id1",
		Ignore:   `^-|^\*+|선택`,
	},
}

// Godomall matches the default skin of godomall storefronts. Option
// entries carry their absolute price after a colon, so options are read
// by selecting each value.
var Godomall = Config{
	Name:             "godomall",
	PageParam:        "page",
	ProductIDPattern: `goodsNo=(\d+)`,
	CategorySep:      " > ",
	ImageAttr:        "src",
	Selectors: Selectors{
		Product:      "div.item_gallery_type ul > li",
		Link:         "div.item_photo_box a",
		Name:         "div.item_detail_tit h3",
		Category:     "div.location_cont .location_tit a",
		Thumbnail:    "#mainImage img",
		Price:        "dl.item_price dd strong",
		SalePrice:    "dl.item_discount_price dd strong",
		Delivery:     "dl.item_delivery_list dd",
		Quantity:     "input.goodsCnt",
		SoldOut:      "div.btn_choice_box .btn_soldout",
		Option:       "select[name='optionSnoInput'] option",
		DetailImages: "div.detail_explain_box",
		DetailImage:  "div.detail_explain_box img",
	},
	Options: OptionConfig{
		Dropdown:  "select[name='optionSnoInput']",
		Delimiter: " : ",
		Ignore:    `^=|선택`,
	},
}
