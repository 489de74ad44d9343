package detect

// SafeDomains are trusted registrable domains. A URL on one of them, or on a
// subdomain, is never checked further.
var SafeDomains = []string{
	"google.com", "google.co.uk", "google.ca", "google.com.au",
	"microsoft.com", "microsoft.co.uk", "microsoft.ca",
	"github.com", "github.io", "githubusercontent.com",
	"apple.com", "icloud.com", "me.com",
	"amazon.com", "amazon.co.uk", "amazon.ca", "amazon.com.au",
	"facebook.com", "instagram.com", "twitter.com", "x.com",
	"linkedin.com", "youtube.com", "reddit.com",
	"stackoverflow.com", "wikipedia.org", "wikimedia.org",
	"mozilla.org", "firefox.com", "chrome.com",
	"cloudflare.com", "fastly.com", "akamai.com",
	"wordpress.com", "tumblr.com", "medium.com",
	"netflix.com", "spotify.com", "discord.com",
	"slack.com", "zoom.us", "teams.microsoft.com",
	"dropbox.com", "box.com", "onedrive.live.com",
	"paypal.com", "stripe.com", "square.com",
	"bankofamerica.com", "wellsfargo.com", "chase.com",
	"usps.com", "fedex.com", "ups.com",
	"weather.com", "accuweather.com", "weather.gov",
	"irs.gov", "ssa.gov", "usps.gov",
	"whitehouse.gov", "congress.gov", "supremecourt.gov",
}

// SuspiciousKeywords each add to the heuristic score when present in a URL.
var SuspiciousKeywords = []string{
	"login", "signin", "verify", "update", "secure", "account", "banking",
	"wallet", "confirm", "pay", "bonus", "free", "gift", "prize", "urgent",
	"suspend",
	// brands
	"netflix", "paypal", "amazon", "apple", "microsoft", "google", "facebook",
	"instagram", "whatsapp", "ledger", "trezor", "metamask", "binance",
	"coinbase", "trustwallet",
}

// SuspiciousTLDs are abuse-prone top-level domains.
var SuspiciousTLDs = []string{
	".xyz", ".top", ".club", ".info", ".site", ".live", ".gq", ".tk", ".ml",
	".ga", ".cf", ".buzz", ".cn", ".vip", ".work",
}
