package geolocate

import (
	"fmt"
	"strings"

	"github.com/kyson-dev/subsync/internal/node"
)

// ipAPIResponse matches ip-api.com's free-tier JSON response shape.
type ipAPIResponse struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	CountryCode string `json:"countryCode"`
	Country     string `json:"country"`
	City        string `json:"city"`
	ISP         string `json:"isp"`
	AS          string `json:"as"`
}

func parseIPAPI(body []byte) (node.Geo, error) {
	var r ipAPIResponse
	if err := decodeJSON(body, &r); err != nil {
		return node.Geo{}, err
	}
	if r.Status != "success" {
		return node.Geo{}, fmt.Errorf("ip-api: %s", r.Message)
	}
	return node.Geo{
		CountryCode: r.CountryCode,
		CountryName: r.Country,
		City:        r.City,
		Org:         r.ISP,
		ASN:         r.AS,
	}, nil
}

// ipwhoisResponse matches ipwho.is's JSON response shape.
type ipwhoisResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	CountryCode string `json:"country_code"`
	Country     string `json:"country"`
	City        string `json:"city"`
	Connection  struct {
		ISP string `json:"isp"`
		ASN int    `json:"asn"`
	} `json:"connection"`
}

func parseIPWhois(body []byte) (node.Geo, error) {
	var r ipwhoisResponse
	if err := decodeJSON(body, &r); err != nil {
		return node.Geo{}, err
	}
	if !r.Success {
		return node.Geo{}, fmt.Errorf("ipwho.is: %s", r.Message)
	}
	return node.Geo{
		CountryCode: r.CountryCode,
		CountryName: r.Country,
		City:        r.City,
		Org:         r.Connection.ISP,
		ASN:         fmt.Sprintf("AS%d", r.Connection.ASN),
	}, nil
}

// ipinfoResponse matches ipinfo.io's JSON response shape (requires a key
// for sustained volume, hence RequiresKey below).
type ipinfoResponse struct {
	Country string `json:"country"`
	City    string `json:"city"`
	Org     string `json:"org"`
	Error   struct {
		Title string `json:"title"`
	} `json:"error"`
}

func parseIPInfo(body []byte) (node.Geo, error) {
	var r ipinfoResponse
	if err := decodeJSON(body, &r); err != nil {
		return node.Geo{}, err
	}
	if r.Error.Title != "" {
		return node.Geo{}, fmt.Errorf("ipinfo: %s", r.Error.Title)
	}
	return node.Geo{
		CountryCode: r.Country,
		City:        r.City,
		Org:         r.Org,
	}, nil
}

// DefaultProviders returns the provider pool shipped by default: two
// keyless free-tier services plus one key-gated service that degrades to
// StatusNoKey until an API key is configured. ipAPIURL overrides the
// ip-api.com endpoint (e.g. to point at the paid pro.ip-api.com tier);
// ipAPIKey, when set, is appended to it as a query parameter.
func DefaultProviders(ipAPIURL, ipAPIKey, ipinfoToken string) []*Provider {
	ipAPITemplate := ipAPIURL
	if ipAPITemplate == "" {
		ipAPITemplate = "http://ip-api.com/json/%s?fields=status,message,countryCode,country,city,isp,as"
	}
	if ipAPIKey != "" {
		sep := "&"
		if !strings.Contains(ipAPITemplate, "?") {
			sep = "?"
		}
		ipAPITemplate += sep + "key=" + ipAPIKey
	}
	return []*Provider{
		{
			Name:               "ip-api",
			URLTemplate:        ipAPITemplate,
			RateLimitPerMinute: 45,
			Parser:             parseIPAPI,
		},
		{
			Name:               "ipwhois",
			URLTemplate:        "https://ipwho.is/%s",
			RateLimitPerMinute: 10000,
			Parser:             parseIPWhois,
		},
		{
			Name:               "ipinfo",
			URLTemplate:        "https://ipinfo.io/%s/json?token=" + ipinfoToken,
			RequiresKey:        true,
			APIKey:             ipinfoToken,
			RateLimitPerMinute: 1000,
			Parser:             parseIPInfo,
		},
	}
}
