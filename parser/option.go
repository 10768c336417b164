package parser

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	optionDelta   = regexp.MustCompile(`\(\s*([+-])\s*(\d[\d,]*)\s*원?\s*\)`)
	optionSoldOut = regexp.MustCompile(`\[품절\]|\(품절\)|(?:^|\s)품절(?:\s|$)`)
)

// Option is a decomposed option label.
type Option struct {
	Raw           string
	Label         string
	Delta         int
	HasDelta      bool
	AdjustedPrice int
	SoldOut       string
}

// DeltaText renders the delta, or "" when the label carried no price suffix.
func (o Option) DeltaText() string {
	if !o.HasDelta {
		return ""
	}
	return strconv.Itoa(o.Delta)
}

// AdjustedPriceText renders the adjusted price for tabular output.
func (o Option) AdjustedPriceText() string {
	return strconv.Itoa(o.AdjustedPrice)
}

// DecomposeOption splits raw option text into a clean label, the signed
// sum of every "(+1,000원)" style suffix, and a sold-out marker. A bare
// 품절 only counts as a standalone word, so 품절임박 stays in the label.
//
//	DecomposeOption("Red(+1,000원)", 10000) -> Label "Red", Delta 1000, AdjustedPrice 11000
//	DecomposeOption("Blue[품절]", 10000)    -> Label "Blue", SoldOut "[품절]"
func DecomposeOption(raw string, base int) Option {
	opt := Option{Raw: raw, AdjustedPrice: base}
	text := raw

	for _, m := range optionDelta.FindAllStringSubmatch(text, -1) {
		n := MustPrice(m[2])
		if m[1] == "-" {
			n = -n
		}
		opt.Delta += n
		opt.HasDelta = true
	}
	text = optionDelta.ReplaceAllString(text, " ")

	if marker := optionSoldOut.FindString(text); marker != "" {
		opt.SoldOut = strings.TrimSpace(marker)
		text = optionSoldOut.ReplaceAllString(text, " ")
	}

	opt.Label = NormalizeText(strings.TrimSpace(text))
	opt.AdjustedPrice = base + opt.Delta
	return opt
}
