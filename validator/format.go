package validator

import (
	"context"
	"fmt"
	"net"
	"regexp"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// StringFormat 字符串格式
type StringFormat string

const (
	FormatEmail    StringFormat = "email"
	FormatURI      StringFormat = "uri"
	FormatUUID     StringFormat = "uuid"
	FormatDateTime StringFormat = "date-time"
	FormatDate     StringFormat = "date"
	FormatTime     StringFormat = "time"
	FormatIPv4     StringFormat = "ipv4"
	FormatIPv6     StringFormat = "ipv6"
	FormatHostname StringFormat = "hostname"
)

var (
	emailRe    = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)
	uriRe      = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*://`)
	dateTimeRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(.\d+)?(Z|[+-]\d{2}:\d{2})?$`)
	dateRe     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	timeRe     = regexp.MustCompile(`^\d{2}:\d{2}:\d{2}(.\d+)?(Z|[+-]\d{2}:\d{2})?$`)
	hostnameRe = regexp.MustCompile(`^[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(\.[a-zA-Z0-9]([a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$`)
)

var formatCheckers = map[StringFormat]func(string) bool{
	FormatEmail: emailRe.MatchString,
	FormatURI:   uriRe.MatchString,
	// 只接受 36 字符的标准形式
	FormatUUID: func(s string) bool {
		_, err := uuid.Parse(s)
		return err == nil && len(s) == 36
	},
	FormatDateTime: dateTimeRe.MatchString,
	FormatDate:     dateRe.MatchString,
	FormatTime:     timeRe.MatchString,
	FormatIPv4: func(s string) bool {
		ip := net.ParseIP(s)
		return ip != nil && ip.To4() != nil && strings.Count(s, ".") == 3
	},
	FormatIPv6: func(s string) bool {
		ip := net.ParseIP(s)
		return ip != nil && strings.Contains(s, ":")
	},
	FormatHostname: func(s string) bool {
		return len(s) <= 253 && hostnameRe.MatchString(s)
	},
}

// Format 字符串格式验证器（email、uri、uuid、date-time 等）
type Format struct {
	Format StringFormat
	check  func(string) bool
}

func newFormat(args map[string]any) (Validator, error) {
	name, err := stringArg(args, "format", true)
	if err != nil {
		return nil, err
	}
	check, ok := formatCheckers[StringFormat(name)]
	if !ok {
		return nil, fmt.Errorf("unknown format %q (known: %s)", name, strings.Join(knownFormats(), ", "))
	}
	return Format{Format: StringFormat(name), check: check}, nil
}

func knownFormats() []string {
	out := make([]string, 0, len(formatCheckers))
	for f := range formatCheckers {
		out = append(out, string(f))
	}
	sort.Strings(out)
	return out
}

// Name 返回验证器名称
func (Format) Name() string { return IDFormat }

// RequiredMetadataKeys 无需元数据
func (Format) RequiredMetadataKeys() []string { return nil }

// Validate 执行验证
func (v Format) Validate(_ context.Context, value any, _ map[string]any) Result {
	s, fail, ok := textValue(value)
	if !ok {
		return fail
	}
	if !v.check(s) {
		return FailReask(fmt.Sprintf("value %q is not a valid %s", s, v.Format))
	}
	return Pass(s)
}
