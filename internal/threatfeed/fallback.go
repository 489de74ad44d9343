package threatfeed

// demoEntries is the fixed demonstration set used while the live feed is
// empty, and first in offline mode.
var demoEntries = []string{
	"example-phishing-site.com",
	"fake-login-page.com",
	"malicious-download.net",
	"fake-phishing-form.com",
	"phishing-test.com",
	"malicious-site.org",
	"fake-bank-login.com",
	"steal-password.net",
	"fake-paypal.com",
	"malware-download.com",
	"auspostac.world",
	"auspostac.world/index.html",
	"fake-auspost.com",
	"phishing-auspost.net",
	"malicious-auspost.org",
	"meta-maskloig.godaddysites.com",
	"litebluelogin-gov.com",
	"netflix-web.vercel.app",
	"connect-ledger-login.typedream.app",
	"walletconnect-website.vercel.app",
	"mettusmask_lodin.godaddysites.com",
	"schwabprotection.com",
	"coinbaselogindesk.blogspot.com.ee",
	"kreken_x_logins.godaddysites.com",
	"sgbybabit.cc",
	"upohold-logiinus.godaddysites.com",
	"trezoriosuite.m-pages.com",
	"gnnnin_1o-giin.godaddysites.com",
	"publictrezzorstart.m-pages.com",
	"steamcomunnitty.cc",
	"bradescard.express-k.com",
	"help-extension-coinbase-chrome.typedream.app",
	"ebays.663shoppingsvip.xyz",
	"secure-id-controll.com",
	"gemminnees_usaloogaan.godaddysites.com",
	"private-user-support-center.io.vn",
	"amazon-clone-amber-mu.vercel.app",
	"meta_-mask_-logi.godaddysites.com",
	"trezor.en-safewallets.com",
}

var fallback = newSnapshot(demoEntries)

// FallbackEntries returns a copy of the demonstration set.
func FallbackEntries() []string {
	out := make([]string, len(fallback.list))
	copy(out, fallback.list)
	return out
}
