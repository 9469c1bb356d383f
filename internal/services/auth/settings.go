package auth

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/j-veylop/watercare-dashboard-tui/internal/models"
)

const settingsPrefix = "var SETTINGS = "

// Settings are the fields of the authorize page's embedded settings blob
// needed to continue the flow.
type Settings struct {
	TransID string
	CSRF    string
}

// ParseSettings locates the `var SETTINGS = {...};` line in the authorize page
// and extracts the transaction id and CSRF token.
func ParseSettings(page []byte) (Settings, error) {
	scanner := bufio.NewScanner(bytes.NewReader(page))
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, settingsPrefix) || !strings.HasSuffix(line, ";") {
			continue
		}

		blob := strings.TrimSuffix(strings.TrimPrefix(line, settingsPrefix), ";")
		if !gjson.Valid(blob) {
			return Settings{}, fmt.Errorf("%w: settings blob is not valid JSON", models.ErrParse)
		}

		parsed := gjson.Parse(blob)
		s := Settings{
			TransID: parsed.Get("transId").String(),
			CSRF:    parsed.Get("csrf").String(),
		}
		if s.TransID == "" || s.CSRF == "" {
			return Settings{}, fmt.Errorf("%w: settings blob lacks transId or csrf", models.ErrParse)
		}
		return s, nil
	}
	if err := scanner.Err(); err != nil {
		return Settings{}, fmt.Errorf("%w: reading authorize page: %v", models.ErrParse, err)
	}

	return Settings{}, fmt.Errorf("%w: authorize page has no settings line", models.ErrParse)
}
