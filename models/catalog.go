// Package models defines data structures for the catalog crawler.
package models

import (
	"strconv"
	"time"
)

// DateLayout is the layout of the run date used to key save-states.
const DateLayout = "2006-01-02"

// Category is a named product grouping with a paginated listing URL.
type Category struct {
	Name string `json:"name" mapstructure:"name"`
	URL  string `json:"url" mapstructure:"url"`
}

// CategoryState records how far a category has been crawled on a given date.
type CategoryState struct {
	Sitename string `json:"sitename"`
	Name     string `json:"name"`
	PageNo   int    `json:"pageno"`
	Date     string `json:"date"`
	Done     bool   `json:"done"`
}

// ProductState records whether a product was fully extracted on a given date.
type ProductState struct {
	Sitename     string `json:"sitename"`
	ProductID    string `json:"productid"`
	CategoryName string `json:"category_name"`
	Date         string `json:"date"`
	Done         bool   `json:"done"`
}

// CrawlRow is one output record: a product, or one option of a product.
type CrawlRow struct {
	Category     string    `csv:"category" json:"category"` // breadcrumb path
	Listing      string    `csv:"listing" json:"listing"`   // category whose listing led here
	URL          string    `csv:"url" json:"url"`
	ProductID    string    `csv:"product_id" json:"product_id"`
	Name         string    `csv:"name" json:"name"`
	Thumbnail    string    `csv:"thumbnail" json:"thumbnail"`
	Price        int       `csv:"price" json:"price"`
	SalePrice    int       `csv:"sale_price" json:"sale_price,omitempty"`
	Delivery     string    `csv:"delivery" json:"delivery,omitempty"`
	Quantity     string    `csv:"quantity" json:"quantity,omitempty"`
	SoldOut      string    `csv:"sold_out" json:"sold_out,omitempty"`
	DetailImages string    `csv:"detail_images" json:"detail_images"`
	OptionLabel  string    `csv:"option" json:"option,omitempty"`
	OptionPrice  string    `csv:"option_price" json:"option_price,omitempty"`
	OptionDelta  string    `csv:"option_delta" json:"option_delta,omitempty"`
	CrawledAt    time.Time `csv:"crawled_at" json:"crawled_at"`
}

// RowColumns is the column order of tabular output.
var RowColumns = []string{
	"category", "listing", "url", "product_id", "name", "thumbnail", "price", "sale_price",
	"delivery", "quantity", "sold_out", "detail_images", "option", "option_price",
	"option_delta", "crawled_at",
}

// Record renders the row in RowColumns order.
func (r *CrawlRow) Record() []string {
	salePrice := ""
	if r.SalePrice > 0 {
		salePrice = strconv.Itoa(r.SalePrice)
	}
	return []string{
		r.Category,
		r.Listing,
		r.URL,
		r.ProductID,
		r.Name,
		r.Thumbnail,
		strconv.Itoa(r.Price),
		salePrice,
		r.Delivery,
		r.Quantity,
		r.SoldOut,
		r.DetailImages,
		r.OptionLabel,
		r.OptionPrice,
		r.OptionDelta,
		r.CrawledAt.Format(time.RFC3339),
	}
}

// CrawlResult holds the overall result of a crawl run.
type CrawlResult struct {
	Site              string
	Date              string
	StartTime         time.Time
	EndTime           time.Time
	CategoriesDone    int
	CategoriesSkipped int
	PageCount         int
	ProductsDone      int
	ProductsSkipped   int
	RowCount          int
	RetryCount        int
	ErrorsByType      map[string]int
	// ProductRows maps a product ID to the number of rows it produced.
	ProductRows map[string]int
}
