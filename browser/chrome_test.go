package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aluiziolira/go-scrape-catalog/document"
)

const detailHTML = `<html><body>
<h2 class="name">린넨 셔츠</h2>
<span id="price">29,000원</span>
<select id="opt">
  <option value="">- 옵션 선택 -</option>
  <option value="r">Red(+1,000원)</option>
  <option value="b">Blue[품절]</option>
</select>
<div class="detail"><img src="https://img.example.com/1.jpg"><img src="https://img.example.com/2.jpg"></div>
<script>
document.getElementById("opt").addEventListener("change", function(e) {
  document.getElementById("price").textContent = e.target.value === "r" ? "30,000원" : "29,000원";
});
</script>
</body></html>`

func requireChrome(t *testing.T) {
	t.Helper()
	for _, name := range []string{"google-chrome", "chromium", "chromium-browser", "headless-shell"} {
		if _, err := exec.LookPath(name); err == nil {
			return
		}
	}
	t.Skip("chrome not available")
}

func TestChromePage(t *testing.T) {
	requireChrome(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(detailHTML))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	b, err := NewChrome(ctx, Options{Headless: true, NavigationTimeout: 20 * time.Second})
	require.NoError(t, err)
	defer b.Close()

	page, err := b.Open(ctx, srv.URL)
	require.NoError(t, err)
	defer page.Close()

	name, err := page.Text(ctx, "h2.name")
	require.NoError(t, err)
	assert.Equal(t, "린넨 셔츠", name)

	n, err := page.Count(ctx, ".detail img")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	srcs, err := page.Attrs(ctx, ".detail img", "src")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://img.example.com/1.jpg", "https://img.example.com/2.jpg"}, srcs)

	_, err = page.Text(ctx, ".missing")
	assert.ErrorIs(t, err, document.ErrNotFound)

	opts, err := page.OptionValues(ctx, "#opt")
	require.NoError(t, err)
	require.Len(t, opts, 3)
	assert.Equal(t, "Red(+1,000원)", opts[1].Text)

	require.NoError(t, page.SelectOption(ctx, "#opt", "r"))
	require.NoError(t, page.WaitStable(ctx, 50*time.Millisecond))
	price, err := page.Text(ctx, "#price")
	require.NoError(t, err)
	assert.Equal(t, "30,000원", price)

	require.NoError(t, page.ScrollIntoView(ctx, ".detail img"))
	require.NoError(t, page.Focus(ctx, ".detail img"))

	html, err := page.HTMLContent(ctx)
	require.NoError(t, err)
	assert.Contains(t, html, "린넨 셔츠")

	assert.NoError(t, page.Close())
	assert.NoError(t, page.Close())
}
