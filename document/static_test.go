package document

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const listingHTML = `<html><body>
<ul class="prdList">
  <li><a class="name" href="/product/detail.html?product_no=11">  린넨 셔츠 </a><img src="//img.example.com/11.jpg"></li>
  <li><a class="name" href="https://shop.example.com/product/detail.html?product_no=12">Denim</a></li>
  <li><a class="name">No link</a></li>
</ul>
</body></html>`

func TestParseRejectsEmptyInput(t *testing.T) {
	_, err := Parse("   ", "https://shop.example.com/list")
	var parseErr *HTMLParsingError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "https://shop.example.com/list", parseErr.URL)
}

func TestStaticQueries(t *testing.T) {
	ctx := context.Background()
	doc, err := Parse(listingHTML, "https://shop.example.com/product/list.html?cate_no=24")
	require.NoError(t, err)

	n, err := doc.Count(ctx, "ul.prdList li a.name")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	text, err := doc.Text(ctx, "ul.prdList li a.name")
	require.NoError(t, err)
	assert.Equal(t, "린넨 셔츠", text)

	texts, err := doc.Texts(ctx, "a.name")
	require.NoError(t, err)
	assert.Equal(t, []string{"린넨 셔츠", "Denim", "No link"}, texts)

	hrefs, err := doc.Attrs(ctx, "a.name", "href")
	require.NoError(t, err)
	assert.Len(t, hrefs, 2)

	_, err = doc.Text(ctx, ".missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	html, err := doc.HTML(ctx, "img")
	require.NoError(t, err)
	assert.Contains(t, html, "11.jpg")
}

func TestStaticNthAndResolve(t *testing.T) {
	ctx := context.Background()
	doc, err := Parse(listingHTML, "https://shop.example.com/product/list.html?cate_no=24")
	require.NoError(t, err)

	first, err := doc.Nth("a.name", 0)
	require.NoError(t, err)
	href, err := first.Attr(ctx, "", "href")
	require.NoError(t, err)
	abs, err := first.Resolve(href)
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example.com/product/detail.html?product_no=11", abs)

	second, err := doc.Nth("a.name", 1)
	require.NoError(t, err)
	href, err = second.Attr(ctx, "", "href")
	require.NoError(t, err)
	abs, err = second.Resolve(href)
	require.NoError(t, err)
	assert.Equal(t, "https://shop.example.com/product/detail.html?product_no=12", abs)

	third, err := doc.Nth("a.name", 2)
	require.NoError(t, err)
	_, err = third.Attr(ctx, "", "href")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = doc.Nth("a.name", 3)
	assert.ErrorIs(t, err, ErrNotFound)
}
