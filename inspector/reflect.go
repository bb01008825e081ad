// Package inspector turns tagged component structs into display fields for
// the status API.
package inspector

import (
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
)

// Widget is the display hint for a field.
type Widget int

const (
	WidgetAuto Widget = iota
	WidgetLabel
	WidgetBar
	WidgetAngle
	WidgetBool
	WidgetSkip
)

var widgetNames = [...]string{"auto", "label", "bar", "angle", "bool", "skip"}

func (w Widget) String() string {
	if w >= 0 && int(w) < len(widgetNames) {
		return widgetNames[w]
	}
	return "unknown"
}

// MarshalText renders the widget by name in JSON.
func (w Widget) MarshalText() ([]byte, error) {
	return []byte(w.String()), nil
}

// Hint is a parsed inspect tag.
//
//	`inspect:"bar,max:300"`
//	`inspect:"label,fmt:%.1f"`
//	`inspect:"skip"`
type Hint struct {
	Widget Widget
	Max    float64 // bar scale, 0 when unset
	Format string
}

// ParseTag parses an inspect struct tag. Unknown widgets fall back to auto
// and unknown options are ignored.
func ParseTag(tag string) Hint {
	var h Hint
	name, opts, _ := strings.Cut(tag, ",")
	for i, n := range widgetNames {
		if n == strings.TrimSpace(name) {
			h.Widget = Widget(i)
		}
	}
	for _, opt := range strings.Split(opts, ",") {
		key, val, ok := strings.Cut(strings.TrimSpace(opt), ":")
		if !ok {
			continue
		}
		switch key {
		case "max":
			if f, err := strconv.ParseFloat(val, 64); err == nil {
				h.Max = f
			}
		case "fmt":
			h.Format = val
		}
	}
	return h
}

// Field is one displayed component field.
type Field struct {
	Name   string  `json:"name"`
	Value  any     `json:"value"`
	Text   string  `json:"text"`
	Widget Widget  `json:"widget"`
	Max    float64 `json:"max,omitempty"`
}

// Section groups the fields of one component.
type Section struct {
	Component string  `json:"component"`
	Fields    []Field `json:"fields"`
}

// Describe extracts the fields of a component into a named section.
func Describe(name string, component any) Section {
	return Section{Component: name, Fields: ExtractFields(component)}
}

// ExtractFields reflects over the exported fields of a struct or struct
// pointer. Values implementing fmt.Stringer are reported by name.
func ExtractFields(component any) []Field {
	v := reflect.ValueOf(component)
	if v.Kind() == reflect.Ptr {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return nil
	}

	t := v.Type()
	var fields []Field
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		h := ParseTag(sf.Tag.Get("inspect"))
		if h.Widget == WidgetSkip {
			continue
		}
		fv := v.Field(i)
		if h.Widget == WidgetAuto {
			h.Widget = WidgetLabel
			if fv.Kind() == reflect.Bool {
				h.Widget = WidgetBool
			}
		}

		value := fv.Interface()
		if s, ok := value.(fmt.Stringer); ok {
			value = s.String()
		}
		fields = append(fields, Field{
			Name:   sf.Name,
			Value:  value,
			Text:   render(fv, value, h),
			Widget: h.Widget,
			Max:    h.Max,
		})
	}
	return fields
}

func render(fv reflect.Value, value any, h Hint) string {
	isFloat := fv.Kind() == reflect.Float32 || fv.Kind() == reflect.Float64
	switch {
	case h.Widget == WidgetAngle && isFloat:
		return fmt.Sprintf("%.0f°", fv.Float()*180/math.Pi)
	case h.Format != "":
		return fmt.Sprintf(h.Format, value)
	case isFloat:
		return strconv.FormatFloat(fv.Float(), 'f', 2, 64)
	default:
		return fmt.Sprint(value)
	}
}
