package parser

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Timecode is a playback offset encoded either as "HH:MM:SS,mmm" (a period
// is accepted in place of the comma) or as a number of milliseconds.
type Timecode time.Duration

// Duration returns the offset as a time.Duration.
func (t Timecode) Duration() time.Duration {
	return time.Duration(t)
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Timecode) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		d, err := ParseTimecode(s)
		if err != nil {
			return err
		}
		*t = Timecode(d)
		return nil
	}
	millis, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid timecode %s", data)
	}
	if millis < 0 {
		return fmt.Errorf("negative timecode %d", millis)
	}
	*t = Timecode(time.Duration(millis) * time.Millisecond)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Timecode) MarshalJSON() ([]byte, error) {
	return json.Marshal(FormatTimecode(time.Duration(t)))
}

// ParseTimecode parses "HH:MM:SS,mmm" or "HH:MM:SS.mmm".
func ParseTimecode(value string) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timecode")
	}
	value = strings.ReplaceAll(value, ".", ",")
	timeParts := strings.Split(value, ",")
	if len(timeParts) != 2 {
		return 0, fmt.Errorf("invalid timecode %q", value)
	}
	hms := strings.Split(timeParts[0], ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timecode %q", value)
	}
	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	seconds, errS := strconv.Atoi(hms[2])
	millis, errMS := strconv.Atoi(timeParts[1])
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("invalid timecode %q", value)
	}
	if hours < 0 || minutes < 0 || minutes > 59 || seconds < 0 || seconds > 59 || millis < 0 || millis > 999 {
		return 0, fmt.Errorf("timecode %q out of range", value)
	}
	total := time.Duration(hours)*time.Hour +
		time.Duration(minutes)*time.Minute +
		time.Duration(seconds)*time.Second +
		time.Duration(millis)*time.Millisecond
	return total, nil
}

// FormatTimecode renders d as "HH:MM:SS,mmm".
func FormatTimecode(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	totalMillis := d.Milliseconds()
	hours := totalMillis / 3_600_000
	minutes := (totalMillis / 60_000) % 60
	seconds := (totalMillis / 1000) % 60
	millis := totalMillis % 1000
	return fmt.Sprintf("%02d:%02d:%02d,%03d", hours, minutes, seconds, millis)
}
