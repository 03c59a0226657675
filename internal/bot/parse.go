package bot

import (
	"fmt"
	"strconv"
	"strings"

	"reportbot/internal/filter"
	"reportbot/internal/model"
)

const (
	cmdAddSimple        = "add_simple"
	cmdAddDated         = "add_dated"
	cmdAddCheckout      = "add_checkout"
	cmdAddWindow        = "add_window"
	cmdAddKeywordWindow = "add_keyword_window"

	maxPhotos = 10
)

// ParseEvent builds an event from the arguments of an /add_* command.
// The returned event has no channel yet.
func ParseEvent(cmd, args string) (model.Event, error) {
	parts := strings.Fields(args)
	switch cmd {
	case cmdAddSimple:
		return parseSimple(parts)
	case cmdAddDated:
		return parseDated(parts)
	case cmdAddCheckout:
		return parseCheckout(parts)
	case cmdAddWindow:
		return parseWindow(parts)
	case cmdAddKeywordWindow:
		return parseKeywordWindow(parts)
	}
	return nil, fmt.Errorf("unknown command %q", cmd)
}

func parseSimple(parts []string) (model.Event, error) {
	if len(parts) < 2 || len(parts) > 3 {
		return nil, fmt.Errorf("usage: /add_simple <keyword> <HH:MM> [photos]")
	}
	keyword, err := parseKeyword(parts[0])
	if err != nil {
		return nil, err
	}
	deadline, err := parseTime(parts[1])
	if err != nil {
		return nil, err
	}
	photos, err := parsePhotos(parts[2:])
	if err != nil {
		return nil, err
	}
	return &model.SimpleEvent{Keyword: keyword, Deadline: deadline, MinPhotos: photos}, nil
}

func parseDated(parts []string) (model.Event, error) {
	if len(parts) < 3 || len(parts) > 4 {
		return nil, fmt.Errorf("usage: /add_dated <YYYY-MM-DD> <keyword> <HH:MM> [photos]")
	}
	date, err := model.ParseDate(parts[0])
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, use YYYY-MM-DD", parts[0])
	}
	keyword, err := parseKeyword(parts[1])
	if err != nil {
		return nil, err
	}
	deadline, err := parseTime(parts[2])
	if err != nil {
		return nil, err
	}
	photos, err := parsePhotos(parts[3:])
	if err != nil {
		return nil, err
	}
	return &model.EphemeralEvent{Keyword: keyword, Deadline: deadline, MinPhotos: photos, Date: date}, nil
}

func parseCheckout(parts []string) (model.Event, error) {
	if len(parts) < 4 || len(parts) > 6 {
		return nil, fmt.Errorf("usage: /add_checkout <keyword> <HH:MM> <keyword> <HH:MM> [photos] [publish HH:MM]")
	}
	first, err := parseKeyword(parts[0])
	if err != nil {
		return nil, err
	}
	firstAt, err := parseTime(parts[1])
	if err != nil {
		return nil, err
	}
	second, err := parseKeyword(parts[2])
	if err != nil {
		return nil, err
	}
	secondAt, err := parseTime(parts[3])
	if err != nil {
		return nil, err
	}
	if !firstAt.Before(secondAt) {
		return nil, fmt.Errorf("declaration deadline %s must be before report deadline %s", firstAt, secondAt)
	}
	if strings.EqualFold(first, second) {
		return nil, fmt.Errorf("declaration and report keywords must differ")
	}

	ev := &model.CheckoutEvent{
		FirstKeyword:   first,
		SecondKeyword:  second,
		FirstDeadline:  firstAt,
		SecondDeadline: secondAt,
	}
	rest := parts[4:]
	if len(rest) > 0 && !strings.Contains(rest[0], ":") {
		if ev.MinPhotos, err = parsePhotos(rest[:1]); err != nil {
			return nil, err
		}
		rest = rest[1:]
	}
	if len(rest) > 0 {
		publish, err := parseTime(rest[0])
		if err != nil {
			return nil, err
		}
		ev.PublishAt = &publish
	}
	return ev, nil
}

func parseWindow(parts []string) (model.Event, error) {
	if len(parts) != 2 {
		return nil, fmt.Errorf("usage: /add_window <HH:MM> <HH:MM>")
	}
	start, end, err := parseRange(parts[0], parts[1])
	if err != nil {
		return nil, err
	}
	return &model.WindowEvent{Start: start, End: end}, nil
}

func parseKeywordWindow(parts []string) (model.Event, error) {
	if len(parts) < 3 {
		return nil, fmt.Errorf("usage: /add_keyword_window <keyword> <HH:MM> <HH:MM> [description]")
	}
	keyword, err := parseKeyword(parts[0])
	if err != nil {
		return nil, err
	}
	start, end, err := parseRange(parts[1], parts[2])
	if err != nil {
		return nil, err
	}
	return &model.KeywordWindowEvent{
		Keyword:     keyword,
		Start:       start,
		End:         end,
		Description: strings.Join(parts[3:], " "),
	}, nil
}

func parseKeyword(s string) (string, error) {
	if err := filter.Validate(s); err != nil {
		return "", fmt.Errorf("invalid keyword %q: %v", s, err)
	}
	return s, nil
}

func parseTime(s string) (model.TimeOfDay, error) {
	t, err := model.ParseTimeOfDay(s)
	if err != nil {
		return t, fmt.Errorf("invalid time %q, use HH:MM", s)
	}
	return t, nil
}

func parseRange(from, to string) (model.TimeOfDay, model.TimeOfDay, error) {
	start, err := parseTime(from)
	if err != nil {
		return start, start, err
	}
	end, err := parseTime(to)
	if err != nil {
		return start, end, err
	}
	if !start.Before(end) {
		return start, end, fmt.Errorf("window start %s must be before end %s", start, end)
	}
	return start, end, nil
}

func parsePhotos(rest []string) (int, error) {
	if len(rest) == 0 {
		return 0, nil
	}
	n, err := strconv.Atoi(rest[0])
	if err != nil || n < 0 || n > maxPhotos {
		return 0, fmt.Errorf("photos must be between 0 and %d", maxPhotos)
	}
	return n, nil
}

// ParseTrackArgs splits /track arguments into a display name and an
// optional trailing store:<id> token.
func ParseTrackArgs(args string) (name, storeID string) {
	parts := strings.Fields(args)
	if n := len(parts); n > 0 {
		if id, ok := strings.CutPrefix(parts[n-1], "store:"); ok {
			storeID = id
			parts = parts[:n-1]
		}
	}
	return strings.Join(parts, " "), storeID
}

// ParseIDArg extracts a numeric ID from a command argument string.
func ParseIDArg(args string) (int64, error) {
	s := strings.TrimSpace(args)
	if s == "" {
		return 0, fmt.Errorf("event ID is required")
	}
	id, err := strconv.ParseInt(strings.TrimPrefix(strings.Fields(s)[0], "#"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid event ID %q", s)
	}
	return id, nil
}
