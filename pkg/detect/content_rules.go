package detect

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/brightfort/phishguard/pkg/calibration"
	"github.com/brightfort/phishguard/pkg/features"
	"github.com/brightfort/phishguard/pkg/page"
)

// ContentRuleScorer applies the deterministic point-additive rules over a
// page snapshot. It is pure: identical input yields identical score and
// indicator set, and absent optional fields (no forms, no links, no title)
// score as false rather than erroring.
type ContentRuleScorer struct {
	calib *calibration.Table
}

// NewContentRuleScorer returns a rule scorer bound to a calibration table.
func NewContentRuleScorer(calib *calibration.Table) *ContentRuleScorer {
	if calib == nil {
		calib = calibration.Default()
	}
	return &ContentRuleScorer{calib: calib}
}

// Score evaluates all rules. The sum is intentionally uncapped at this
// stage; the fusion engine clamps the combined result.
func (s *ContentRuleScorer) Score(rawURL string, content *page.Content) SignalResult {
	result := SignalResult{Source: SourceRule}
	if content == nil {
		return result
	}
	rules := s.calib.Rules

	pageDomain := ""
	if u, err := url.Parse(rawURL); err == nil {
		pageDomain = features.RegistrableDomain(u.Hostname())
	}

	loginForms := 0
	for _, f := range content.Forms {
		if !f.IsLoginForm() {
			continue
		}
		loginForms++

		if actionScheme(f.Action) == "http" {
			result.Score += rules.UnencryptedLogin
			result.AddIndicator("login form submits over unencrypted HTTP")
		}
		if d := features.ActionDomain(f.Action); d != "" && pageDomain != "" && d != pageDomain {
			result.Score += rules.CrossDomainAction
			result.AddIndicator(fmt.Sprintf("login form posts to foreign domain %s", d))
		}
		if f.PasswordFields > 1 {
			result.Score += rules.MultiplePasswordFields
			result.AddIndicator("multiple password fields in one form")
		}
	}

	if loginForms > 0 && !content.HasHTTPS {
		result.Score += rules.LoginWithoutHTTPS
		result.AddIndicator("login form on a page without HTTPS")
	}

	if brand, ok := s.titleBrandMismatch(content.Title, pageDomain); ok {
		result.Score += rules.BrandImpersonation
		result.AddIndicator(fmt.Sprintf("title claims %s but domain is %s", brand, pageDomain))
	}

	if content.HasUrgencyLanguage {
		result.Score += rules.UrgencyLanguage
		result.AddIndicator("urgency language present")
	}

	// Excess "secure/verified" language only counts against a page that
	// earlier rules already made suspicious; on a clean page it is noise.
	if content.ClaimsSecureOrVerified && result.Score > 0 {
		result.Score += rules.ExcessSecurityClaims
		result.AddIndicator("excessive security claims on a suspicious page")
	}

	if skewed, ratio := s.externalLinkSkew(pageDomain, content.Links); skewed {
		result.Score += rules.ExternalLinkSkew
		result.AddIndicator(fmt.Sprintf("%.0f%% of links point off-domain", ratio*100))
	}

	return result
}

// titleBrandMismatch reports whether the title names a known brand whose
// legitimate domain set does not include the hosting domain.
func (s *ContentRuleScorer) titleBrandMismatch(title, pageDomain string) (string, bool) {
	if title == "" || pageDomain == "" {
		return "", false
	}
	lower := strings.ToLower(title)
	for _, brand := range s.calib.BrandNames() {
		if !strings.Contains(lower, brand) {
			continue
		}
		if domainInSet(pageDomain, s.calib.BrandDomains(brand)) {
			continue
		}
		return brand, true
	}
	return "", false
}

func (s *ContentRuleScorer) externalLinkSkew(pageDomain string, links []page.Link) (bool, float64) {
	if len(links) <= s.calib.Rules.ExternalLinkMinCount || pageDomain == "" {
		return false, 0
	}
	external := 0
	for _, l := range links {
		d := features.ActionDomain(l.Href)
		if d != "" && d != pageDomain {
			external++
		}
	}
	ratio := float64(external) / float64(len(links))
	return ratio > s.calib.Rules.ExternalLinkRatioThreshold, ratio
}

func domainInSet(domain string, set []string) bool {
	for _, d := range set {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return true
		}
	}
	return false
}

func actionScheme(action string) string {
	u, err := url.Parse(strings.TrimSpace(action))
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Scheme)
}
