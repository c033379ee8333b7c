package helpers

import (
	"math/rand/v2"
)

var (
	userAgents = []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	}

	// browserHeaders are sent with every browser navigation
	browserHeaders = map[string]string{
		"Accept-Language": "zh-CN,zh;q=0.9,en-US;q=0.8,en;q=0.7",
		"Cache-Control":   "no-cache",
		"Pragma":          "no-cache",
	}
)

// RandomUserAgent picks a desktop Chrome user agent
func RandomUserAgent(rnd *rand.Rand) string {
	if rnd == nil {
		return userAgents[rand.IntN(len(userAgents))]
	}
	return userAgents[rnd.IntN(len(userAgents))]
}

// BrowserHeaders returns a copy of the headers sent with navigations
func BrowserHeaders() map[string]string {
	headers := make(map[string]string, len(browserHeaders))
	for k, v := range browserHeaders {
		headers[k] = v
	}
	return headers
}
