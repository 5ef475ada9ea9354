// Package cleanup provides ascii reporter
package cleanup

import (
	"fmt"
	"strings"

	"github.com/AtRiskMedia/adstack-go/internal/infrastructure/caching/interfaces"
)

const (
	cyan     = "\033[38;2;86;182;194m"  // One Dark Cyan: #56B6C2
	dimCyan  = "\033[38;2;47;91;102m"   // Dim Cyan: #2F5B66
	grey     = "\033[38;2;110;118;129m" // Brighter Grey: #6E7681
	dimGrey  = "\033[38;2;75;82;99m"    // Darker Grey: #4B5263
	success  = "\033[38;2;62;130;144m"  // Dim Cyan: #3E8290
	errorRed = "\033[38;2;224;108;117m" // One Dark Red: #E06C75
	white    = "\033[38;2;171;178;191m" // One Dark Foreground: #ABB2BF
	reset    = "\033[0m"
	bold     = "\033[1m"
)

type Reporter struct {
	cache interfaces.Cache
}

func NewReporter(cache interfaces.Cache) *Reporter {
	return &Reporter{cache: cache}
}

func (r *Reporter) LogHeader(title string) {
	fmt.Printf("%s%s✓ %s %s\n", bold, cyan, strings.ToUpper(title), reset)
}

func (r *Reporter) LogSubHeader(text string) {
	fmt.Printf("%s%s░▒▓ %s %s\n", bold, dimCyan, text, reset)
}

func (r *Reporter) LogStage(message string, args ...any) {
	formattedMsg := fmt.Sprintf(message, args...)
	fmt.Printf("%s%s✦ %s%s%s\n", success, bold, grey, formattedMsg, reset)
}

func (r *Reporter) LogSuccess(message string, args ...any) {
	formattedMsg := fmt.Sprintf(message, args...)
	fmt.Printf("%s%s✦ %s%s%s\n", success, bold, white, formattedMsg, reset)
}

func (r *Reporter) LogInfo(message string, args ...any) {
	formattedMsg := fmt.Sprintf(message, args...)
	fmt.Printf("%s⚡ %s%s%s\n", dimGrey, grey, formattedMsg, reset)
}

func (r *Reporter) LogError(message string, err error) {
	fmt.Printf("%s%s✗ %s: %v%s\n", bold, errorRed, message, err, reset)
}

// GenerateTenantReport renders a one-tenant cache summary block.
func (r *Reporter) GenerateTenantReport(tenantID string) string {
	summary := r.cache.GetCacheSummary(tenantID)

	var b strings.Builder
	fmt.Fprintf(&b, "%s░▒▓ Tenant: %s%s\n", dimCyan, tenantID, reset)
	if exists, _ := summary["exists"].(bool); !exists {
		fmt.Fprintf(&b, "%s  (no cache initialized)%s\n", dimGrey, reset)
		return b.String()
	}
	fmt.Fprintf(&b, "%s  hot periods: %v (stale: %v) last updated: %v%s\n",
		grey, summary["hotPeriods"], summary["staleCount"], summary["lastUpdated"], reset)
	return b.String()
}
