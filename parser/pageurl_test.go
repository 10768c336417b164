package parser

import "testing"

func TestPageURL(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		param string
		n     int
		want  string
	}{
		{
			name:  "question mark form",
			raw:   "https://x.com/cat?page=2",
			param: "page",
			n:     3,
			want:  "https://x.com/cat?page=3",
		},
		{
			name:  "ampersand form",
			raw:   "https://x.com/product/list.html?cate_no=24&page=7&sort=new",
			param: "page",
			n:     1,
			want:  "https://x.com/product/list.html?cate_no=24&page=1&sort=new",
		},
		{
			name:  "no query",
			raw:   "https://x.com/cat",
			param: "page",
			n:     2,
			want:  "https://x.com/cat?page=2",
		},
		{
			name:  "query without page",
			raw:   "https://x.com/goods/list.php?cateCd=001",
			param: "page",
			n:     4,
			want:  "https://x.com/goods/list.php?cateCd=001&page=4",
		},
		{
			name:  "fragment kept",
			raw:   "https://x.com/cat?a=1#top",
			param: "page",
			n:     5,
			want:  "https://x.com/cat?a=1&page=5#top",
		},
		{
			name:  "empty value",
			raw:   "https://x.com/cat?page=",
			param: "page",
			n:     9,
			want:  "https://x.com/cat?page=9",
		},
		{
			name:  "custom parameter",
			raw:   "https://x.com/list?pageNo=1",
			param: "pageNo",
			n:     2,
			want:  "https://x.com/list?pageNo=2",
		},
		{
			name:  "similar parameter untouched",
			raw:   "https://x.com/list?subpage=1",
			param: "page",
			n:     2,
			want:  "https://x.com/list?subpage=1&page=2",
		},
		{
			name:  "default parameter",
			raw:   "https://x.com/cat?page=1",
			param: "",
			n:     6,
			want:  "https://x.com/cat?page=6",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := PageURL(tt.raw, tt.param, tt.n); got != tt.want {
				t.Errorf("PageURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPageURLRoundTrip(t *testing.T) {
	bases := []string{
		"https://x.com/cat?page=2",
		"https://x.com/list.html?cate_no=24&page=11",
		"https://x.com/cat",
		"https://x.com/cat?sort=price",
	}
	for _, base := range bases {
		for n := 1; n <= 25; n++ {
			u := PageURL(base, "page", n)
			got, ok := PageNumber(u, "page")
			if !ok || got != n {
				t.Fatalf("PageNumber(PageURL(%q, %d)) = %d, %v", base, n, got, ok)
			}
		}
	}
}

func TestPageNumberMissing(t *testing.T) {
	if _, ok := PageNumber("https://x.com/cat?sort=price", "page"); ok {
		t.Fatal("expected no page number")
	}
}

func TestMemoPageURLMatchesPageURL(t *testing.T) {
	memo, err := NewMemo(16)
	if err != nil {
		t.Fatalf("NewMemo() error = %v", err)
	}
	raw := "https://x.com/list.html?cate_no=24&page=1"
	for n := 1; n <= 3; n++ {
		if got, want := memo.PageURL(raw, "page", n), PageURL(raw, "page", n); got != want {
			t.Fatalf("memo.PageURL() = %q, want %q", got, want)
		}
	}
	if memo.Len() == 0 {
		t.Fatal("expected memo entries")
	}
	memo.Purge()
	if memo.Len() != 0 {
		t.Fatalf("expected empty memo after purge, got %d", memo.Len())
	}
}

func TestMemoRegexp(t *testing.T) {
	memo, err := NewMemo(0)
	if err != nil {
		t.Fatalf("NewMemo() error = %v", err)
	}
	first, err := memo.Regexp(`goodsNo=(\d+)`)
	if err != nil {
		t.Fatalf("Regexp() error = %v", err)
	}
	second, _ := memo.Regexp(`goodsNo=(\d+)`)
	if first != second {
		t.Fatal("expected cached regexp to be reused")
	}
	if _, err := memo.Regexp(`(`); err == nil {
		t.Fatal("expected compile error")
	}
}
