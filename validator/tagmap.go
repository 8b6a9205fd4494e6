package validator

var tagMap = map[string]string{
	"required": "required",
	"min":      "too_short",
	"max":      "too_long",
	"gt":       "too_small",
	"lt":       "too_large",
	"gte":      "too_small_or_equal",
	"lte":      "too_large_or_equal",
	"oneof":    "invalid_choice",
	"numeric":  "only_numbers_allowed",
	"boolean":  "invalid_boolean",
}

func mapTagToCode(tag string) string {
	if code, ok := tagMap[tag]; ok {
		return code
	}
	return "invalid"
}
