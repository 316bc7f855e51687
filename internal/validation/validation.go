// Package validation содержит функции валидации входных данных.
package validation

import (
	"net/url"
	"strings"
)

// IsValidTargetURL проверяет, что ссылка на продвигаемый объект является
// абсолютным http(s)-адресом с непустым хостом.
func IsValidTargetURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return false
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return false
	}

	return u.Host != ""
}
