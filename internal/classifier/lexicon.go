package classifier

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Lexicon maps a tactic category to its phrases and their weights.
// Phrases are matched as lowercase substrings.
type Lexicon map[string]map[string]float64

// DefaultLexicon is the built-in weighted phrase table.
func DefaultLexicon() Lexicon {
	return Lexicon{
		"urgency": {
			"urgent": 2.5, "immediately": 2.5, "now": 1.8, "quickly": 1.8,
			"asap": 2.5, "expire": 2.2, "expires": 2.2, "limited time": 2.5,
			"today": 1.6, "24 hours": 2.0,
		},
		"account_threat": {
			"blocked": 2.8, "suspended": 2.8, "locked": 2.8, "deactivated": 2.5,
			"freeze": 2.5, "expiry": 2.5, "will be blocked": 3.0,
		},
		"verification": {
			"verify": 2.2, "verification": 2.2, "confirm": 1.8, "validate": 1.8,
			"authenticate": 2.0, "kyc": 2.5, "update kyc": 3.0, "kyc expired": 3.0,
		},
		"payment_method": {
			"upi": 2.0, "upi id": 2.5, "bank account": 2.5, "card": 1.6,
			"credit card": 2.5, "debit card": 2.5, "transfer": 1.8,
			"paytm": 1.8, "phonepe": 1.8, "gpay": 1.8,
		},
		"personal_credential": {
			"mobile number": 2.2, "phone number": 2.2, "otp": 2.8, "pin": 2.5,
			"password": 2.5, "cvv": 3.0, "aadhaar": 2.5, "pan card": 2.5,
		},
		"phishing_action": {
			"link": 1.8, "click here": 2.5, "download": 2.0, "qr code": 2.5,
			"scan": 2.0, "approval": 1.8, "authorize": 2.2,
		},
		"fake_reward": {
			"reward": 1.8, "cashback": 1.8, "refund": 2.0, "bonus": 1.8,
			"credit": 1.6, "won": 2.2, "claim": 2.0, "eligible": 1.8,
		},
		"legal_threat": {
			"action required": 2.8, "legal action": 2.5, "fine": 2.0,
			"penalty": 2.0, "arrest": 2.8, "compliance": 2.0, "rbi": 2.2,
		},
		"impersonation": {
			"customer care": 2.0, "support team": 2.0, "security team": 2.2,
			"customer service": 2.0,
		},
		"ecommerce": {
			"order": 1.5, "delivery": 1.5, "cod": 2.0, "cash on delivery": 2.5,
			"package": 1.8, "parcel": 1.8, "customs": 2.2, "clearance fee": 2.8,
			"shipping": 1.6, "shipping fee": 2.5, "sale": 1.5, "discount": 1.5,
			"90% off": 2.5, "80% off": 2.5, "stock": 1.6, "voucher": 1.8,
			"coupon": 1.6, "offer": 1.5, "limited": 1.8, "exclusive": 1.8,
			"free": 1.6, "renewal": 1.8, "renew": 1.8, "subscription": 1.6,
			"membership": 1.6,
		},
		"job_investment": {
			"job": 1.8, "work from home": 2.5, "wfh": 2.5, "earn": 2.0,
			"salary": 1.6, "per month": 1.6, "registration fee": 2.8,
			"training fee": 2.8, "registration": 2.0, "investment": 2.2,
			"invest": 2.0, "profit": 2.0, "returns": 1.8, "guaranteed": 2.5,
			"double your money": 3.0, "crypto": 2.0, "cryptocurrency": 2.0,
			"wallet": 1.8, "bitcoin": 1.8, "stock market": 2.0, "stocks": 1.8,
			"shares": 1.8, "survey": 1.8, "part-time": 1.6, "mlm": 2.5,
			"multi-level": 2.5, "withdraw": 1.8, "joining fee": 2.8,
			"arrears": 2.0, "pension": 1.6,
		},
	}
}

// LoadLexicon reads a lexicon from a YAML file of the form
//
//	urgency:
//	  urgent: 2.5
//	  asap: 2.5
func LoadLexicon(path string) (Lexicon, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read lexicon file: %w", err)
	}

	var lex Lexicon
	if err := yaml.Unmarshal(data, &lex); err != nil {
		return nil, fmt.Errorf("failed to decode lexicon file: %w", err)
	}

	if err := lex.Validate(); err != nil {
		return nil, err
	}
	return lex, nil
}

// Validate rejects empty categories, blank phrases, non-positive weights
// and phrases listed under more than one category.
func (l Lexicon) Validate() error {
	if len(l) == 0 {
		return fmt.Errorf("lexicon is empty")
	}

	owner := make(map[string]string)
	for _, category := range l.Categories() {
		phrases := l[category]
		if strings.TrimSpace(category) == "" {
			return fmt.Errorf("lexicon has a blank category name")
		}
		if len(phrases) == 0 {
			return fmt.Errorf("lexicon category %q has no phrases", category)
		}
		for phrase, weight := range phrases {
			norm := normalizePhrase(phrase)
			if norm == "" {
				return fmt.Errorf("lexicon category %q has a blank phrase", category)
			}
			if weight <= 0 {
				return fmt.Errorf("lexicon phrase %q has non-positive weight %v", phrase, weight)
			}
			if prev, ok := owner[norm]; ok {
				return fmt.Errorf("lexicon phrase %q listed under both %q and %q", norm, prev, category)
			}
			owner[norm] = category
		}
	}
	return nil
}

// Categories returns category names in sorted order.
func (l Lexicon) Categories() []string {
	names := make([]string, 0, len(l))
	for name := range l {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func normalizePhrase(p string) string {
	return strings.ToLower(strings.TrimSpace(p))
}
