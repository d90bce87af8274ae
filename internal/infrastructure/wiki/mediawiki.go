package wiki

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"wikimetron/internal/domain"
	"wikimetron/internal/ports"
)

// talkPrefixes maps a wiki language to its talk namespace prefix; languages
// not listed use the English prefix, which most wikis alias.
var talkPrefixes = map[string]string{
	"en": "Talk",
	"fr": "Discussion",
	"de": "Diskussion",
	"it": "Discussione",
	"es": "Discusión",
	"ca": "Discussió",
	"pt": "Discussão",
	"et": "Arutelu",
	"lv": "Diskusija",
	"lt": "Aptarimas",
	"ro": "Discuție",
	"uk": "Обговорення",
	"be": "Размовы",
	"ru": "Обсуждение",
	"nl": "Overleg",
	"da": "Diskussion",
	"sv": "Diskussion",
	"no": "Diskusjon",
	"fi": "Keskustelu",
	"pl": "Dyskusja",
	"hu": "Vita",
	"cs": "Diskuse",
	"sk": "Diskusia",
	"bg": "Беседа",
	"sr": "Разговор",
	"hr": "Razgovor",
	"el": "Συζήτηση",
	"tr": "Tartışma",
	"he": "שיחה",
	"ar": "نقاش",
	"fa": "بحث",
	"hi": "वार्ता",
	"id": "Pembicaraan",
	"zh": "Talk",
	"ja": "ノート",
}

// TalkTitle prefixes a title with the language's talk namespace.
func TalkTitle(title, lang string) string {
	prefix, ok := talkPrefixes[strings.ToLower(lang)]
	if !ok {
		prefix = "Talk"
	}
	return prefix + ":" + title
}

type queryResponse struct {
	Continue map[string]any `json:"continue"`
	Query    struct {
		Pages        []pageData `json:"pages"`
		UserContribs []struct {
			SizeDiff int64 `json:"sizediff"`
		} `json:"usercontribs"`
	} `json:"query"`
	Error *apiError `json:"error"`
}

type apiError struct {
	Code string `json:"code"`
	Info string `json:"info"`
}

type pageData struct {
	Title      string           `json:"title"`
	Missing    bool             `json:"missing"`
	Revisions  []revisionData   `json:"revisions"`
	Protection []protectionData `json:"protection"`
}

type revisionData struct {
	RevID     int64  `json:"revid"`
	ParentID  int64  `json:"parentid"`
	User      string `json:"user"`
	Anon      bool   `json:"anon"`
	Minor     bool   `json:"minor"`
	Timestamp string `json:"timestamp"`
	Size      int64  `json:"size"`
	Slots     struct {
		Main struct {
			Content string `json:"content"`
		} `json:"main"`
	} `json:"slots"`
}

type protectionData struct {
	Type  string `json:"type"`
	Level string `json:"level"`
}

func baseQueryParams() url.Values {
	return url.Values{
		"action":        []string{"query"},
		"format":        []string{"json"},
		"formatversion": []string{"2"},
	}
}

// Revisions fetches up to the safety cap of revisions no newer than end,
// newest first, following continuation tokens transparently. A zero since
// leaves the lower bound open so metrics can look past the analysis window.
func (c *Client) Revisions(ctx context.Context, title, lang string, since, end time.Time) ([]domain.Revision, error) {
	const op = "revisions"

	params := baseQueryParams()
	params.Set("prop", "revisions")
	params.Set("titles", title)
	params.Set("rvprop", "ids|timestamp|user|size|flags")
	params.Set("rvlimit", "max")
	params.Set("rvdir", "older")
	params.Set("rvstart", end.UTC().Format(time.RFC3339))
	if !since.IsZero() {
		params.Set("rvend", since.UTC().Format(time.RFC3339))
	}

	var out []domain.Revision
	for {
		var resp queryResponse
		if err := c.getJSON(ctx, surfaceMediaWiki, op, c.apiURL(lang), params, &resp); err != nil {
			return nil, err
		}
		if resp.Error != nil {
			return nil, &domain.SourceError{Surface: surfaceMediaWiki, Op: op, Err: fmt.Errorf("api error %s: %s", resp.Error.Code, resp.Error.Info)}
		}
		if len(resp.Query.Pages) == 0 {
			break
		}
		page := resp.Query.Pages[0]
		if page.Missing {
			return nil, fmt.Errorf("%s (%s): %w", title, lang, domain.ErrPageMissing)
		}

		for _, rev := range page.Revisions {
			parsed, err := parseRevision(rev)
			if err != nil {
				c.debug("skip unparsable revision", "title", title, "error", err)
				continue
			}
			out = append(out, parsed)
			if len(out) >= c.maxRevisions {
				return out, nil
			}
		}

		if len(resp.Continue) == 0 {
			break
		}
		for k, v := range resp.Continue {
			params.Set(k, fmt.Sprintf("%v", v))
		}
	}

	return out, nil
}

func parseRevision(rev revisionData) (domain.Revision, error) {
	ts, err := time.Parse(time.RFC3339, rev.Timestamp)
	if err != nil {
		return domain.Revision{}, fmt.Errorf("parse timestamp %q: %w", rev.Timestamp, err)
	}
	return domain.Revision{
		ID:        rev.RevID,
		ParentID:  rev.ParentID,
		User:      rev.User,
		Anonymous: rev.Anon,
		Minor:     rev.Minor,
		Timestamp: ts,
		Size:      rev.Size,
	}, nil
}

// protectionBatchSize is the MediaWiki limit for titles per info query.
const protectionBatchSize = 50

// Protection returns the edit-protection levels per title, batching up to 50
// titles into one upstream request.
func (c *Client) Protection(ctx context.Context, lang string, titles []string) (map[string][]string, error) {
	const op = "protection"

	out := make(map[string][]string, len(titles))
	for start := 0; start < len(titles); start += protectionBatchSize {
		chunk := titles[start:min(start+protectionBatchSize, len(titles))]

		params := baseQueryParams()
		params.Set("prop", "info")
		params.Set("inprop", "protection")
		params.Set("titles", strings.Join(chunk, "|"))

		var resp queryResponse
		if err := c.getJSON(ctx, surfaceMediaWiki, op, c.apiURL(lang), params, &resp); err != nil {
			return nil, err
		}
		if resp.Error != nil {
			return nil, &domain.SourceError{Surface: surfaceMediaWiki, Op: op, Err: fmt.Errorf("api error %s: %s", resp.Error.Code, resp.Error.Info)}
		}

		for _, page := range resp.Query.Pages {
			if page.Missing {
				out[page.Title] = nil
				continue
			}
			var levels []string
			for _, prot := range page.Protection {
				if prot.Type == "edit" {
					levels = append(levels, prot.Level)
				}
			}
			out[page.Title] = levels
		}
	}

	return out, nil
}

// Content returns the current wikitext of the article or its talk page.
func (c *Client) Content(ctx context.Context, title, lang string, ns ports.Namespace) (string, error) {
	const op = "content"

	target := title
	if ns == ports.NamespaceTalk {
		target = TalkTitle(title, lang)
	}

	params := baseQueryParams()
	params.Set("prop", "revisions")
	params.Set("titles", target)
	params.Set("rvprop", "content")
	params.Set("rvslots", "main")
	params.Set("redirects", "1")

	var resp queryResponse
	if err := c.getJSON(ctx, surfaceMediaWiki, op, c.apiURL(lang), params, &resp); err != nil {
		return "", err
	}
	if resp.Error != nil {
		return "", &domain.SourceError{Surface: surfaceMediaWiki, Op: op, Err: fmt.Errorf("api error %s: %s", resp.Error.Code, resp.Error.Info)}
	}
	if len(resp.Query.Pages) == 0 || resp.Query.Pages[0].Missing {
		return "", fmt.Errorf("%s (%s): %w", target, lang, domain.ErrPageMissing)
	}
	page := resp.Query.Pages[0]
	if len(page.Revisions) == 0 {
		return "", nil
	}
	return page.Revisions[0].Slots.Main.Content, nil
}

// UserContribs returns the size diffs of a user's most recent edits before
// end, oldest last.
func (c *Client) UserContribs(ctx context.Context, user, lang string, limit int, end time.Time) ([]int64, error) {
	const op = "usercontribs"

	params := baseQueryParams()
	params.Set("list", "usercontribs")
	params.Set("ucuser", user)
	params.Set("ucprop", "sizediff")
	params.Set("uclimit", strconv.Itoa(limit))
	params.Set("ucstart", end.UTC().Format(time.RFC3339))

	var resp queryResponse
	if err := c.getJSON(ctx, surfaceMediaWiki, op, c.apiURL(lang), params, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, &domain.SourceError{Surface: surfaceMediaWiki, Op: op, Err: fmt.Errorf("api error %s: %s", resp.Error.Code, resp.Error.Info)}
	}

	diffs := make([]int64, 0, len(resp.Query.UserContribs))
	for _, contrib := range resp.Query.UserContribs {
		diffs = append(diffs, contrib.SizeDiff)
	}
	return diffs, nil
}
