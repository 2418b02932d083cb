package extcron

import (
	"errors"
	"strings"

	"github.com/robfig/cron/v3"
)

// ErrDisabled is returned for "@manually" and empty specs.
var ErrDisabled = errors.New("schedule disabled")

// ExtParser extends the robfig/cron parser with an optional seconds field
// and the "@manually" descriptor.
type ExtParser struct {
	parser cron.Parser
}

func NewParser() cron.ScheduleParser {
	return ExtParser{cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)}
}

// Parse accepts five or six field specs, "@every <duration>", the standard
// descriptors, "@minutely" and "@manually".
func (p ExtParser) Parse(spec string) (cron.Schedule, error) {
	spec = strings.TrimSpace(spec)
	switch spec {
	case "", "@manually":
		return nil, ErrDisabled
	case "@minutely":
		return p.parser.Parse("0 * * * * *")
	}
	return p.parser.Parse(spec)
}
