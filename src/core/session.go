package core

import (
	"strings"

	"mxshs/oddsportal/src/domain"
)

const feedExtension = ".dat"

// FeedPrefix is the start of every odds feed URL on host.
func FeedPrefix(host string) string {
	return "https://" + host + "/feed/match/"
}

// ResolveSessionToken finds the feed request the match page fired for
// matchID and returns the token at the end of its file name, e.g.
// https://fb.oddsportal.com/feed/match/1-1-2JDks1o7-1-2-yjd15.dat?_=1618320499284 -> "yjd15".
// Requests are scanned in capture order and the first match that carries a
// parsable token wins. A matching request without one (no .dat file name, no
// trailing token) is skipped, so a later request can still supply the token.
// NoToken is returned when none do.
func ResolveSessionToken(requests []Request, matchID, prefix string) domain.SessionToken {
	for _, req := range requests {
		if !strings.HasPrefix(req.URL, prefix) || !strings.Contains(req.URL, matchID) {
			continue
		}
		if token := tokenFromURL(req.URL); token != domain.NoToken {
			return token
		}
	}
	return domain.NoToken
}

func tokenFromURL(url string) domain.SessionToken {
	if i := strings.IndexAny(url, "?#"); i >= 0 {
		url = url[:i]
	}
	name := url[strings.LastIndex(url, "/")+1:]

	name, ok := strings.CutSuffix(name, feedExtension)
	if !ok {
		return domain.NoToken
	}

	i := strings.LastIndex(name, "-")
	if i < 0 {
		return domain.NoToken
	}

	return domain.SessionToken(name[i+1:])
}
