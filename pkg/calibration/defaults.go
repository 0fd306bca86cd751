package calibration

import "time"

// TableVersion identifies the compiled-in calibration. Bump whenever a
// weight, threshold, or phrase list changes so golden fixtures stay honest.
const TableVersion = "2026.08.1"

// Pattern type names used across the behavior catalog. Exported so the
// scorer and the calibration table agree on spelling.
const (
	PatternFormHijacking    = "formHijacking"
	PatternKeyLogging       = "keyLogging"
	PatternRedirectChain    = "redirectChain"
	PatternCookieTheft      = "cookieTheft"
	PatternInvisibleIframes = "invisibleIframes"
	PatternPopupAbuse       = "popupAbuse"
	PatternEventBlockers    = "eventBlockers"
)

// Feature names. The model artifact carries its own ordered copy of these;
// the extractor and classifier cross-check against this set at load time.
const (
	FeatURLLength             = "urlLength"
	FeatDomainLength          = "domainLength"
	FeatSubdomainCount        = "subdomainCount"
	FeatDomainHasHyphen       = "domainHasHyphen"
	FeatPathLength            = "pathLength"
	FeatPathSegmentCount      = "pathSegmentCount"
	FeatSpecialCharCount      = "specialCharCount"
	FeatURLHTTPS              = "urlHttps"
	FeatHasQueryParams        = "hasQueryParams"
	FeatQueryParamCount       = "queryParamCount"
	FeatFormCount             = "formCount"
	FeatLoginFormCount        = "loginFormCount"
	FeatPasswordFieldCount    = "passwordFieldCount"
	FeatExternalFormAction    = "externalFormAction"
	FeatLinkCount             = "linkCount"
	FeatExternalLinkRatio     = "externalLinkRatio"
	FeatSecurityClaim         = "securityClaim"
	FeatUrgencyLanguage       = "urgencyLanguage"
	FeatContentHTTPS          = "contentHttps"
	FeatLoginFormWithoutHTTPS = "loginFormWithoutHttps"
)

// ModelFeatureOrder is the canonical 20-feature serialization order for
// the ensemble model input.
var ModelFeatureOrder = []string{
	FeatURLLength,
	FeatDomainLength,
	FeatSubdomainCount,
	FeatDomainHasHyphen,
	FeatPathLength,
	FeatPathSegmentCount,
	FeatSpecialCharCount,
	FeatURLHTTPS,
	FeatHasQueryParams,
	FeatQueryParamCount,
	FeatFormCount,
	FeatLoginFormCount,
	FeatPasswordFieldCount,
	FeatExternalFormAction,
	FeatLinkCount,
	FeatExternalLinkRatio,
	FeatSecurityClaim,
	FeatUrgencyLanguage,
	FeatContentHTTPS,
	FeatLoginFormWithoutHTTPS,
}

// Default returns the compiled-in calibration table.
func Default() *Table {
	return &Table{
		Version: TableVersion,

		// Binary flags carry no range entry: they are emitted as 0/1 and
		// need no rescaling.
		Features: map[string]Range{
			FeatURLLength:          {Min: 10, Max: 120},
			FeatDomainLength:       {Min: 4, Max: 40},
			FeatSubdomainCount:     {Min: 0, Max: 5},
			FeatPathLength:         {Min: 0, Max: 80},
			FeatPathSegmentCount:   {Min: 0, Max: 8},
			FeatSpecialCharCount:   {Min: 0, Max: 20},
			FeatQueryParamCount:    {Min: 0, Max: 10},
			FeatFormCount:          {Min: 0, Max: 5},
			FeatLoginFormCount:     {Min: 0, Max: 3},
			FeatPasswordFieldCount: {Min: 0, Max: 4},
			FeatLinkCount:          {Min: 0, Max: 100},
		},

		Rules: RuleWeights{
			UnencryptedLogin:           30,
			CrossDomainAction:          30,
			LoginWithoutHTTPS:          30,
			BrandImpersonation:         30,
			UrgencyLanguage:            15,
			ExcessSecurityClaims:       10,
			ExternalLinkSkew:           15,
			MultiplePasswordFields:     15,
			ExternalLinkRatioThreshold: 0.7,
			ExternalLinkMinCount:       5,
		},

		Text: TextWeights{
			UrgencyPoints:              25,
			UrgencyMinMatches:          2,
			ClaimPoints:                15,
			ClaimMinMatches:            3,
			BrandPoints:                30,
			BrandTextMinMentions:       2,
			GrammarPoints:              15,
			GrammarTriggerWeight:       1.0,
			GrammarShortSentenceWeight: 0.6,
			GrammarLongSentenceWeight:  0.6,
			TyposquatSimilarity:        85,
		},

		Phrases: Phrases{
			Urgency: []string{
				"urgent", "immediately", "act now", "right away",
				"account suspended", "account locked", "account disabled",
				"verify your account", "confirm your identity",
				"expires today", "within 24 hours", "final notice",
				"unusual activity", "unauthorized access", "limited time",
				"will be closed", "will be terminated", "last warning",
			},
			SecurityClaims: []string{
				"100% secure", "fully secure", "totally safe",
				"verified site", "certified secure", "trusted site",
				"bank-level security", "military-grade encryption",
				"ssl secured", "safe and secure", "guaranteed safe",
				"officially verified", "security verified",
			},
			PoorGrammar: []WeightedPhrase{
				{Phrase: "kindly do the needful", Weight: 1.0},
				{Phrase: "dear costumer", Weight: 1.0},
				{Phrase: "dear customer,", Weight: 0.3},
				{Phrase: "valued customer", Weight: 0.3},
				{Phrase: "acount", Weight: 0.6},
				{Phrase: "pasword", Weight: 0.6},
				{Phrase: "securty", Weight: 0.6},
				{Phrase: "verifcation", Weight: 0.6},
				{Phrase: "informations", Weight: 0.4},
				{Phrase: "revert back", Weight: 0.4},
				{Phrase: "please to", Weight: 0.5},
				{Phrase: "for verify", Weight: 0.5},
			},
			TransmissionHints: []string{
				"fetch(", "xmlhttprequest", ".send(", "sendbeacon",
				"websocket", "new image", "img.src", "atob(",
			},
			CookieAccessHints: []string{
				"document.cookie", "session", "sessid", "auth_token",
				"cookie=",
			},
		},

		Brands: map[string][]string{
			"paypal":    {"paypal.com", "paypal.me"},
			"apple":     {"apple.com", "icloud.com"},
			"google":    {"google.com", "gmail.com", "youtube.com"},
			"microsoft": {"microsoft.com", "live.com", "outlook.com", "office.com"},
			"amazon":    {"amazon.com", "amazon.co.uk", "amazon.de", "aws.amazon.com"},
			"facebook":  {"facebook.com", "fb.com", "messenger.com"},
			"instagram": {"instagram.com"},
			"netflix":   {"netflix.com"},
			"chase":     {"chase.com"},
			"wells fargo": {
				"wellsfargo.com",
			},
			"bank of america": {
				"bankofamerica.com",
			},
			"dhl":   {"dhl.com", "dhl.de"},
			"fedex": {"fedex.com"},
			"usps":  {"usps.com"},
		},

		Behavior: BehaviorWeights{
			Weights: map[string]float64{
				PatternFormHijacking:    0.8,
				PatternKeyLogging:       0.9,
				PatternRedirectChain:    0.6,
				PatternCookieTheft:      0.7,
				PatternInvisibleIframes: 0.7,
				PatternPopupAbuse:       0.5,
				PatternEventBlockers:    0.6,
			},
			RedirectBurstWindow: 5 * time.Second,
			RedirectBurstCount:  2,
			PopupBurstWindow:    10 * time.Second,
			PopupBurstCount:     2,
			ExfilWindow:         5 * time.Second,
			HotWeight:           0.7,
		},

		Fusion: FusionWeights{
			MLWeight:            0.6,
			RuleWeight:          0.4,
			TextWeight:          0.4,
			BehaviorWeight:      0.35,
			InteractionWeight:   0.25,
			PhishingThreshold:   70,
			SuspiciousThreshold: 40,
			MLVerdictThreshold:  0.7,
		},

		MLImportance: map[string]float64{
			FeatURLLength:             0.04,
			FeatDomainLength:          0.03,
			FeatSubdomainCount:        0.06,
			FeatDomainHasHyphen:       0.05,
			FeatPathLength:            0.02,
			FeatPathSegmentCount:      0.02,
			FeatSpecialCharCount:      0.05,
			FeatURLHTTPS:              0.08,
			FeatHasQueryParams:        0.02,
			FeatQueryParamCount:       0.03,
			FeatFormCount:             0.04,
			FeatLoginFormCount:        0.09,
			FeatPasswordFieldCount:    0.07,
			FeatExternalFormAction:    0.11,
			FeatLinkCount:             0.02,
			FeatExternalLinkRatio:     0.07,
			FeatSecurityClaim:         0.04,
			FeatUrgencyLanguage:       0.05,
			FeatContentHTTPS:          0.05,
			FeatLoginFormWithoutHTTPS: 0.06,
		},

		Cache: CacheCaps{
			Phishing:   1000,
			Suspicious: 1000,
			Safe:       5000,
		},
	}
}
