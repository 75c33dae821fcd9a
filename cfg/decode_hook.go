package cfg

import (
	"reflect"
	"strconv"

	"github.com/mitchellh/mapstructure"
)

func hookFunc() mapstructure.DecodeHookFuncType {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}
		s := data.(string)
		switch t {
		case reflect.TypeOf(Octal(0)):
			return strconv.ParseInt(s, 8, 32)
		default:
			return data, nil
		}
	}
}

// decodeHook composes the text-unmarshaller hook (so Octal's
// UnmarshalText is honored when it's present) with our own Octal
// shortcut and mapstructure's defaults, matching gcsfuse's cfg.DecodeHook.
var decodeHook = mapstructure.ComposeDecodeHookFunc(
	mapstructure.TextUnmarshallerHookFunc(),
	hookFunc(),
	mapstructure.StringToTimeDurationHookFunc(),
)
