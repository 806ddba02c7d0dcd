package schema

import (
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"unicode/utf8"
)

func CheckValidCoordinates(lat, lng float64) error {
	if lat < -90 || lat > 90 {
		return fmt.Errorf("invalid latitude %v, must be between -90 and 90", lat)
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("invalid longitude %v, must be between -180 and 180", lng)
	}
	return nil
}

// A viewport is either fully specified or absent.
func CheckValidViewport(lat, lng, zoom *float64) error {
	set := 0
	for _, v := range []*float64{lat, lng, zoom} {
		if v != nil {
			set++
		}
	}
	if set == 0 {
		return nil
	}
	if set != 3 {
		return errors.New("viewport latitude, longitude and zoom must be provided together")
	}
	if err := CheckValidCoordinates(*lat, *lng); err != nil {
		return err
	}
	if *zoom < 0 || *zoom > 22 {
		return fmt.Errorf("invalid zoom %v, must be between 0 and 22", *zoom)
	}
	return nil
}

func checkDatePart(name string, value *int, min, max int) error {
	if value != nil && (*value < min || *value > max) {
		return fmt.Errorf("invalid %v %d, must be between %d and %d", name, *value, min, max)
	}
	return nil
}

func CheckValidPlannedDates(dates PlannedDates) error {
	checks := []struct {
		name     string
		value    *int
		min, max int
	}{
		{"start year", dates.StartYear, 1900, 2200},
		{"start month", dates.StartMonth, 1, 12},
		{"start day", dates.StartDay, 1, 31},
		{"end year", dates.EndYear, 1900, 2200},
		{"end month", dates.EndMonth, 1, 12},
		{"end day", dates.EndDay, 1, 31},
	}
	for _, c := range checks {
		if err := checkDatePart(c.name, c.value, c.min, c.max); err != nil {
			return err
		}
	}
	return nil
}

func CheckValidName(name string, maxLen int) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return errors.New("name must be specified")
	}
	if utf8.RuneCountInString(trimmed) > maxLen {
		return fmt.Errorf("name must be at most %d characters", maxLen)
	}
	return nil
}

func CheckValidUrl(raw string) error {
	if raw == "" {
		return nil
	}
	parsed, err := url.Parse(raw)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return fmt.Errorf("invalid url '%v', must be an absolute http(s) url", raw)
	}
	return nil
}

func CheckValidEmail(email string) error {
	// Only bare addresses are accepted, not "Name <addr>" forms.
	parsed, err := mail.ParseAddress(email)
	if err != nil || parsed.Address != email {
		return fmt.Errorf("invalid email '%v'", email)
	}
	return nil
}
