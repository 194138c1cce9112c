package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"golang.org/x/text/language"
)

// CountryUnspecifiedTag is the wire form of the Unspecified country.
const CountryUnspecifiedTag = "Unspecified"

// Country is an ISO 3166-1 alpha-2 country backed by the x/text region table.
// The zero value is the Unspecified country.
type Country struct {
	region language.Region
}

// Unspecified is the sentinel "no information" country.
var Unspecified = Country{}

// CountryOf wraps a region. Regions without an assigned alpha-2 code
// (groups, private-use, deprecated and reserved codes) become Unspecified.
func CountryOf(r language.Region) Country {
	if _, ok := assignedCodes[r.String()]; !ok || !r.IsCountry() {
		return Unspecified
	}

	return Country{region: r}
}

// EncodeCountry returns the two-letter code, or CountryUnspecifiedTag.
func EncodeCountry(c Country) string {
	if c == Unspecified {
		return CountryUnspecifiedTag
	}

	return c.region.String()
}

// assignedCodes are the officially assigned ISO 3166-1 alpha-2 codes.
// Deprecated, reserved, alias and group codes known to x/text are absent.
var assignedCodes = func() map[string]struct{} {
	m := make(map[string]struct{}, 249)
	for _, code := range []string{
		"AD", "AE", "AF", "AG", "AI", "AL", "AM", "AO", "AQ", "AR", "AS", "AT", "AU", "AW", "AX", "AZ",
		"BA", "BB", "BD", "BE", "BF", "BG", "BH", "BI", "BJ", "BL", "BM", "BN", "BO", "BQ", "BR", "BS",
		"BT", "BV", "BW", "BY", "BZ", "CA", "CC", "CD", "CF", "CG", "CH", "CI", "CK", "CL", "CM", "CN",
		"CO", "CR", "CU", "CV", "CW", "CX", "CY", "CZ", "DE", "DJ", "DK", "DM", "DO", "DZ", "EC", "EE",
		"EG", "EH", "ER", "ES", "ET", "FI", "FJ", "FK", "FM", "FO", "FR", "GA", "GB", "GD", "GE", "GF",
		"GG", "GH", "GI", "GL", "GM", "GN", "GP", "GQ", "GR", "GS", "GT", "GU", "GW", "GY", "HK", "HM",
		"HN", "HR", "HT", "HU", "ID", "IE", "IL", "IM", "IN", "IO", "IQ", "IR", "IS", "IT", "JE", "JM",
		"JO", "JP", "KE", "KG", "KH", "KI", "KM", "KN", "KP", "KR", "KW", "KY", "KZ", "LA", "LB", "LC",
		"LI", "LK", "LR", "LS", "LT", "LU", "LV", "LY", "MA", "MC", "MD", "ME", "MF", "MG", "MH", "MK",
		"ML", "MM", "MN", "MO", "MP", "MQ", "MR", "MS", "MT", "MU", "MV", "MW", "MX", "MY", "MZ", "NA",
		"NC", "NE", "NF", "NG", "NI", "NL", "NO", "NP", "NR", "NU", "NZ", "OM", "PA", "PE", "PF", "PG",
		"PH", "PK", "PL", "PM", "PN", "PR", "PS", "PT", "PW", "PY", "QA", "RE", "RO", "RS", "RU", "RW",
		"SA", "SB", "SC", "SD", "SE", "SG", "SH", "SI", "SJ", "SK", "SL", "SM", "SN", "SO", "SR", "SS",
		"ST", "SV", "SX", "SY", "SZ", "TC", "TD", "TF", "TG", "TH", "TJ", "TK", "TL", "TM", "TN", "TO",
		"TR", "TT", "TV", "TW", "TZ", "UA", "UG", "UM", "US", "UY", "UZ", "VA", "VC", "VE", "VG", "VI",
		"VN", "VU", "WF", "WS", "YE", "YT", "ZA", "ZM", "ZW",
	} {
		m[code] = struct{}{}
	}
	return m
}()

// DecodeCountry looks up an exact, case-sensitive alpha-2 code.
// Any input that does not name an assigned country yields Unspecified.
func DecodeCountry(code string) Country {
	if _, ok := assignedCodes[code]; !ok {
		return Unspecified
	}

	r, err := language.ParseRegion(code)
	if err != nil || r.String() != code {
		return Unspecified
	}

	return CountryOf(r)
}

// Region returns the underlying region. Unspecified maps to the zero region.
func (c Country) Region() language.Region {
	return c.region
}

// IsSpecified reports whether c names a real country.
func (c Country) IsSpecified() bool {
	return c != Unspecified
}

// String implements fmt.Stringer.
func (c Country) String() string {
	return EncodeCountry(c)
}

// MarshalJSON implements json.Marshaler.
func (c Country) MarshalJSON() ([]byte, error) {
	return json.Marshal(EncodeCountry(c))
}

// UnmarshalJSON implements json.Unmarshaler. It never returns an error:
// anything that is not a known code string decodes to Unspecified.
func (c *Country) UnmarshalJSON(data []byte) error {
	var code string
	if bytes.Equal(data, []byte("null")) || json.Unmarshal(data, &code) != nil {
		*c = Unspecified
		return nil
	}

	*c = DecodeCountry(code)
	return nil
}

// Scan implements sql.Scanner with the same fallback as DecodeCountry.
func (c *Country) Scan(src any) error {
	switch v := src.(type) {
	case string:
		*c = DecodeCountry(v)
	case []byte:
		*c = DecodeCountry(string(v))
	case nil:
		*c = Unspecified
	default:
		return fmt.Errorf("country: unsupported scan type %T", src)
	}

	return nil
}
