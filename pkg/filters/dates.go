package filters

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/goodsign/monday"
	"github.com/ncruces/go-strftime"
	"github.com/neurodesk/mdtemplate/pkg/mdtemplate"
)

const (
	defaultStrftime    = "%x %X"
	defaultLocalLayout = "2 January 2006"
)

// date parses a free-form date and formats it with a strftime layout.
func (c *catalog) date(val mdtemplate.Value, args []mdtemplate.Value) (mdtemplate.Value, error) {
	if err := checkArgs("date", args, 0, 1); err != nil {
		return nil, err
	}
	t, err := c.toTime(val)
	if err != nil {
		return nil, err
	}
	return str(strftime.Format(stringArg(args, 0, defaultStrftime), t)), nil
}

// dateLocal formats a date with a Go layout, translating month and day
// names into the given locale (default: the configured one).
func (c *catalog) dateLocal(val mdtemplate.Value, args []mdtemplate.Value) (mdtemplate.Value, error) {
	if err := checkArgs("date_local", args, 0, 2); err != nil {
		return nil, err
	}
	t, err := c.toTime(val)
	if err != nil {
		return nil, err
	}
	layout := stringArg(args, 0, defaultLocalLayout)
	locale := mondayLocale(stringArg(args, 1, c.locale))
	return str(monday.Format(t, layout, locale)), nil
}

func (c *catalog) toTime(v mdtemplate.Value) (time.Time, error) {
	switch t := v.(type) {
	case mdtemplate.TimeValue:
		return time.Time(t), nil
	case mdtemplate.IntValue:
		return time.Unix(int64(t), 0).In(c.loc), nil
	case mdtemplate.StringValue:
		parsed, err := dateparse.ParseIn(strings.TrimSpace(string(t)), c.loc)
		if err != nil {
			return time.Time{}, fmt.Errorf("parsing date %q: %w", string(t), err)
		}
		return parsed, nil
	}
	return time.Time{}, fmt.Errorf("cannot use %s as a date", mdtemplate.TypeName(v))
}

var mondayLocales = map[string]monday.Locale{
	"en":    monday.LocaleEnUS,
	"en_us": monday.LocaleEnUS,
	"en_gb": monday.LocaleEnGB,
	"de":    monday.LocaleDeDE,
	"de_de": monday.LocaleDeDE,
	"fr":    monday.LocaleFrFR,
	"fr_fr": monday.LocaleFrFR,
	"fr_ca": monday.LocaleFrCA,
	"es":    monday.LocaleEsES,
	"es_es": monday.LocaleEsES,
	"it":    monday.LocaleItIT,
	"it_it": monday.LocaleItIT,
	"pt":    monday.LocalePtPT,
	"pt_pt": monday.LocalePtPT,
	"pt_br": monday.LocalePtBR,
	"nl":    monday.LocaleNlNL,
	"nl_nl": monday.LocaleNlNL,
	"nl_be": monday.LocaleNlBE,
	"ru":    monday.LocaleRuRU,
	"ru_ru": monday.LocaleRuRU,
	"pl":    monday.LocalePlPL,
	"pl_pl": monday.LocalePlPL,
	"sv":    monday.LocaleSvSE,
	"sv_se": monday.LocaleSvSE,
	"ja":    monday.LocaleJaJP,
	"ja_jp": monday.LocaleJaJP,
	"zh":    monday.LocaleZhCN,
	"zh_cn": monday.LocaleZhCN,
	"zh_tw": monday.LocaleZhTW,
}

// mondayLocale maps a locale string such as "de-AT" to the closest locale
// supported for month and day names, falling back to English.
func mondayLocale(locale string) monday.Locale {
	locale = strings.ToLower(strings.ReplaceAll(locale, "-", "_"))
	if loc, ok := mondayLocales[locale]; ok {
		return loc
	}
	lang, _, _ := strings.Cut(locale, "_")
	if loc, ok := mondayLocales[lang]; ok {
		return loc
	}
	return monday.LocaleEnUS
}
