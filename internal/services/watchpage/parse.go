package watchpage

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/o-sallam/ytlinks-backend/internal/domain"
)

var (
	lengthSecondsPattern = regexp.MustCompile(`"lengthSeconds"\s*:\s*"(\d+)"`)
	metaDurationPattern  = regexp.MustCompile(`itemprop="duration"\s+content="PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?"`)
	playabilityPattern   = regexp.MustCompile(`"playabilityStatus"\s*:\s*\{\s*"status"\s*:\s*"([A-Z_]+)"`)
)

var errNoDuration = errors.New("watch page carries no duration")

// ParseDuration extracts the video length from a watch page. The player
// response is preferred; the schema.org meta tag is the fallback.
func ParseDuration(html string) (int64, error) {
	if m := playabilityPattern.FindStringSubmatch(html); m != nil {
		switch m[1] {
		case "ERROR":
			return 0, fmt.Errorf("%w: playability status %s", domain.ErrNotFound, m[1])
		case "LOGIN_REQUIRED", "AGE_CHECK_REQUIRED", "AGE_VERIFICATION_REQUIRED":
			return 0, fmt.Errorf("%w: playability status %s", domain.ErrForbidden, m[1])
		}
	}
	if m := lengthSecondsPattern.FindStringSubmatch(html); m != nil {
		seconds, err := strconv.ParseInt(m[1], 10, 64)
		if err == nil && seconds > 0 {
			return seconds, nil
		}
	}
	if m := metaDurationPattern.FindStringSubmatch(html); m != nil {
		var total int64
		for i, unit := range []int64{3600, 60, 1} {
			if m[i+1] == "" {
				continue
			}
			n, err := strconv.ParseInt(m[i+1], 10, 64)
			if err != nil {
				return 0, errNoDuration
			}
			total += n * unit
		}
		if total > 0 {
			return total, nil
		}
	}
	return 0, errNoDuration
}
