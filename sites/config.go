// Package sites describes storefronts as data. A Config names the CSS
// selectors of one storefront; SelectorSite turns it into the extractor
// set the crawl engine runs.
package sites

import (
	"errors"
	"fmt"
	"regexp"

	"dario.cat/mergo"
	"github.com/spf13/viper"
)

// Selectors are the CSS selectors of a storefront. An empty selector
// means the storefront does not expose that field.
type Selectors struct {
	Product      string `mapstructure:"product"`
	Link         string `mapstructure:"link"`
	Name         string `mapstructure:"name"`
	Category     string `mapstructure:"category"`
	Thumbnail    string `mapstructure:"thumbnail"`
	Price        string `mapstructure:"price"`
	SalePrice    string `mapstructure:"sale_price"`
	Delivery     string `mapstructure:"delivery"`
	Quantity     string `mapstructure:"quantity"`
	SoldOut      string `mapstructure:"sold_out"`
	Option       string `mapstructure:"option"`
	DetailImages string `mapstructure:"detail_images"`
	DetailImage  string `mapstructure:"detail_image"`
}

// OptionConfig configures the option dropdown for price-changing mode.
type OptionConfig struct {
	Dropdown  string `mapstructure:"dropdown"`
	Delimiter string `mapstructure:"delimiter"`
	Ignore    string `mapstructure:"ignore"`
}

// Config is one storefront. Template names a registered Config the
// remaining fields are merged over.
type Config struct {
	Name     string `mapstructure:"name"`
	Template string `mapstructure:"template"`
	BaseURL  string `mapstructure:"base_url"`

	PageParam        string `mapstructure:"page_param"`
	ProductIDPattern string `mapstructure:"product_id_pattern"`
	RenderListing    bool   `mapstructure:"render_listing"`
	CategoryOptional bool   `mapstructure:"category_optional"`
	CategorySep      string `mapstructure:"category_sep"`
	ImageAttr        string `mapstructure:"image_attr"`

	Selectors Selectors    `mapstructure:"selectors"`
	Options   OptionConfig `mapstructure:"options"`
}

// Validate checks that the selectors every product needs are present.
func (c Config) Validate() error {
	var errs []error
	if c.Name == "" {
		errs = append(errs, errors.New("name cannot be empty"))
	}
	if c.Selectors.Product == "" {
		errs = append(errs, errors.New("selectors.product cannot be empty"))
	}
	if c.Selectors.Name == "" {
		errs = append(errs, errors.New("selectors.name cannot be empty"))
	}
	if c.Selectors.Price == "" {
		errs = append(errs, errors.New("selectors.price cannot be empty"))
	}
	if c.ProductIDPattern == "" {
		errs = append(errs, errors.New("product_id_pattern cannot be empty"))
	} else if _, err := regexp.Compile(c.ProductIDPattern); err != nil {
		errs = append(errs, fmt.Errorf("product_id_pattern: %w", err))
	}
	if c.Options.Ignore != "" {
		if _, err := regexp.Compile(c.Options.Ignore); err != nil {
			errs = append(errs, fmt.Errorf("options.ignore: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("site %q: %w", c.Name, errors.Join(errs...))
	}
	return nil
}

// Merge returns base with every non-empty field of override applied.
// Booleans can only be switched on by an override.
func Merge(base, override Config) (Config, error) {
	merged := base
	if err := mergo.Merge(&merged, override, mergo.WithOverride); err != nil {
		return Config{}, fmt.Errorf("merge site %q: %w", override.Name, err)
	}
	return merged, nil
}

// LoadFile reads a site Config from a YAML, JSON or TOML file. The file
// may hold the Config at its root or under a "site" key.
func LoadFile(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("read site file %s: %w", path, err)
	}

	var cfg Config
	var err error
	if v.IsSet("site") {
		err = v.UnmarshalKey("site", &cfg)
	} else {
		err = v.Unmarshal(&cfg)
	}
	if err != nil {
		return Config{}, fmt.Errorf("decode site file %s: %w", path, err)
	}
	return cfg, nil
}
