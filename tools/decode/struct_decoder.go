package decode

import (
	"fmt"
	"reflect"
	"strconv"

	"github.com/mitchellh/mapstructure"
)

// Options 定制 Decode 行为
type Options struct {
	// 宽松解码（默认 true）：例如 "123" -> int、1.0 -> int64
	WeaklyTypedInput bool
}

func DefaultOptions() Options {
	return Options{WeaklyTypedInput: true}
}

// DecodeMap 将事件负载 map 解码到任意业务结构体 T。
// 字段读取使用 `json` tag，例如 AuthPayload / MessagePayload。
func DecodeMap[T any](m map[string]any, opts ...Options) (*T, error) {
	if m == nil {
		return nil, fmt.Errorf("payload map is nil")
	}

	cfg := DefaultOptions()
	if len(opts) > 0 {
		cfg = opts[0]
	}

	var out T
	decCfg := &mapstructure.DecoderConfig{
		TagName:          "json",
		Result:           &out,
		WeaklyTypedInput: cfg.WeaklyTypedInput,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			floatToIntHook(),
			sliceAnyToSliceStringHook(),
		),
	}

	dec, err := mapstructure.NewDecoder(decCfg)
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(m); err != nil {
		return nil, err
	}
	return &out, nil
}

// JSON 数字默认是 float64，目标是整型时做无损转换
func floatToIntHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.Float64 {
			return data, nil
		}
		f := data.(float64)
		switch to.Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			if f == float64(int64(f)) {
				return int64(f), nil
			}
			return nil, fmt.Errorf("lossy float->int: %v", f)
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			if f >= 0 && f == float64(uint64(f)) {
				return uint64(f), nil
			}
			return nil, fmt.Errorf("lossy float->uint: %v", f)
		case reflect.String:
			return strconv.FormatFloat(f, 'f', -1, 64), nil
		}
		return data, nil
	}
}

// []any -> []string（元素必须都是 string）
func sliceAnyToSliceStringHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.Slice || to != reflect.TypeOf([]string(nil)) {
			return data, nil
		}
		src, ok := data.([]any)
		if !ok {
			return data, nil
		}
		out := make([]string, 0, len(src))
		for _, v := range src {
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("slice element is not string: %T", v)
			}
			out = append(out, s)
		}
		return out, nil
	}
}
