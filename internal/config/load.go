package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// EnvPrefix is prepended to every env tag.
const EnvPrefix = "CAMRELAY_"

// LoadConfig fills the exported fields of the struct pointed to by opts.
//
// A field named Config holds the TOML path. Values are applied in order of
// increasing precedence: TOML file (`toml:"section.key"`), then environment
// (`env:"KEY"` read as CAMRELAY_KEY). Fields whose flag was explicitly set on
// cmd are left alone, so CLI flags win over both.
func LoadConfig(opts any, cmd *cobra.Command) error {
	v := reflect.ValueOf(opts)
	if v.Kind() != reflect.Pointer || v.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("config: want pointer to struct, got %T", opts)
	}
	v = v.Elem()
	t := v.Type()

	changed := make(map[string]bool)
	if cmd != nil {
		// humacli registers options as persistent flags on the root command.
		mark := func(f *pflag.Flag) {
			if f.Changed {
				changed[f.Name] = true
			}
		}
		cmd.Flags().VisitAll(mark)
		cmd.PersistentFlags().VisitAll(mark)
	}

	var tree map[string]any
	if f := v.FieldByName("Config"); f.IsValid() && f.Kind() == reflect.String && f.String() != "" {
		data, err := os.ReadFile(f.String())
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return fmt.Errorf("config: read %s: %w", f.String(), err)
		default:
			if err := toml.Unmarshal(data, &tree); err != nil {
				return fmt.Errorf("config: parse %s: %w", f.String(), err)
			}
		}
	}

	var errs []error
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		field := v.Field(i)
		if !sf.IsExported() || changed[flagName(sf.Name)] {
			continue
		}

		if path := sf.Tag.Get("toml"); path != "" && tree != nil {
			if raw, ok := lookup(tree, path); ok {
				if err := assign(field, raw); err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", path, err))
				}
			}
		}
		if key := sf.Tag.Get("env"); key != "" {
			if raw, ok := os.LookupEnv(EnvPrefix + key); ok && raw != "" {
				if err := assignString(field, raw); err != nil {
					errs = append(errs, fmt.Errorf("%s%s: %w", EnvPrefix, key, err))
				}
			}
		}
	}
	return errors.Join(errs...)
}

// flagName converts a field name to the kebab-case flag humacli derives:
// "ProbeTimeoutSec" -> "probe-timeout-sec", "RecordsCSVPath" -> "records-csv-path".
func flagName(field string) string {
	runes := []rune(field)
	var b strings.Builder
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if !unicode.IsUpper(prev) || nextLower {
				b.WriteByte('-')
			}
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}

func lookup(tree map[string]any, path string) (any, bool) {
	parts := strings.Split(path, ".")
	node := tree
	for _, p := range parts[:len(parts)-1] {
		next, ok := node[p].(map[string]any)
		if !ok {
			return nil, false
		}
		node = next
	}
	raw, ok := node[parts[len(parts)-1]]
	return raw, ok
}

// assign sets field from a decoded TOML value. Numbers are accepted for
// string fields so `timeout_sec = 6` and `timeout_sec = "6"` both work.
func assign(field reflect.Value, raw any) error {
	switch field.Kind() {
	case reflect.String:
		switch val := raw.(type) {
		case string:
			field.SetString(val)
		case int64:
			field.SetString(strconv.FormatInt(val, 10))
		case float64:
			field.SetString(strconv.FormatFloat(val, 'f', -1, 64))
		case bool:
			field.SetString(strconv.FormatBool(val))
		case []any:
			items := make([]string, 0, len(val))
			for _, item := range val {
				items = append(items, fmt.Sprint(item))
			}
			field.SetString(strings.Join(items, ","))
		default:
			return fmt.Errorf("cannot use %T as string", raw)
		}
	case reflect.Bool:
		b, ok := raw.(bool)
		if !ok {
			return fmt.Errorf("cannot use %T as bool", raw)
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int64:
		n, ok := raw.(int64)
		if !ok {
			return fmt.Errorf("cannot use %T as int", raw)
		}
		field.SetInt(n)
	case reflect.Float64:
		switch val := raw.(type) {
		case float64:
			field.SetFloat(val)
		case int64:
			field.SetFloat(float64(val))
		default:
			return fmt.Errorf("cannot use %T as float", raw)
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", field.Type())
		}
		items, ok := raw.([]any)
		if !ok {
			return fmt.Errorf("cannot use %T as list", raw)
		}
		out := make([]string, 0, len(items))
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				return fmt.Errorf("list item %T is not a string", item)
			}
			out = append(out, s)
		}
		field.Set(reflect.ValueOf(out))
	default:
		return fmt.Errorf("unsupported field kind %s", field.Kind())
	}
	return nil
}

// assignString sets field from an environment value. Lists are comma
// separated.
func assignString(field reflect.Value, raw string) error {
	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)
	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		field.SetBool(b)
	case reflect.Int, reflect.Int64:
		n, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
		if err != nil {
			return err
		}
		field.SetInt(n)
	case reflect.Float64:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type %s", field.Type())
		}
		field.Set(reflect.ValueOf(SplitList(raw)))
	default:
		return fmt.Errorf("unsupported field kind %s", field.Kind())
	}
	return nil
}

// SplitList splits a comma separated value, dropping blank items.
func SplitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
