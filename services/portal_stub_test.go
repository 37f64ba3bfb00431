package services

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/parkwatch/parking-backend/shared"
	"github.com/stretchr/testify/require"
)

// fakeRow is one citation row the fake portal renders into its results table.
type fakeRow struct {
	citation string
	date     string
	status   string
	amount   string
}

// fakePortal simulates the target site's postback protocol for tests: it
// issues fresh hidden tokens on every response, rejects submissions that do
// not carry a previously issued token, and routes on __EVENTTARGET.
type fakePortal struct {
	server *httptest.Server

	mu          sync.Mutex
	tokenSeq    int
	issuedToken map[string]bool
	getCount    int
	postCount   int
	tagSearches []url.Values
	citSearches []url.Values

	tagResults    map[string][]fakeRow
	detailPages   map[string]string
	failCitations map[string]bool
	failTagSearch bool
	errorLabel    string
	totalDue      string

	detailDelay time.Duration
	inFlight    int32
	maxInFlight int32
}

func newFakePortal() *fakePortal {
	p := &fakePortal{
		issuedToken:   make(map[string]bool),
		tagResults:    make(map[string][]fakeRow),
		detailPages:   make(map[string]string),
		failCitations: make(map[string]bool),
	}
	p.server = httptest.NewServer(http.HandlerFunc(p.handle))
	return p
}

func (p *fakePortal) close() {
	p.server.Close()
}

func (p *fakePortal) url() string {
	return p.server.URL + "/parkingSearch.aspx"
}

func (p *fakePortal) nextToken() string {
	p.tokenSeq++
	token := fmt.Sprintf("tok-%d", p.tokenSeq)
	p.issuedToken[token] = true
	return token
}

// formHTML renders the search form with fresh hidden tokens plus whatever
// page body is supplied. The state dropdown deliberately has the empty
// option selected so callers must default it.
func (p *fakePortal) formHTML(body string) string {
	token := p.nextToken()
	return fmt.Sprintf(`<html><body>
<form method="post">
<input type="hidden" name="__VIEWSTATE" id="__VIEWSTATE" value="%s" />
<input type="hidden" name="__VIEWSTATEGENERATOR" id="__VIEWSTATEGENERATOR" value="CA0B0334" />
<input type="hidden" name="__EVENTVALIDATION" id="__EVENTVALIDATION" value="ev-%s" />
<input type="hidden" name="ctl00$ContentPlaceHolder1$hfTab" value="tagplate" />
<input type="text" name="ctl00$ContentPlaceHolder1$txtTag" value="" />
<input type="text" name="ctl00$ContentPlaceHolder1$txtcitn" value="" />
<select name="ctl00$ContentPlaceHolder1$DropDownState">
<option value="" selected></option>
<option value="FL">FLORIDA</option>
</select>
</form>
%s
</body></html>`, token, token, body)
}

func (p *fakePortal) resultsBody(rows []fakeRow) string {
	body := `<table>
<tr><th>More Info</th><th>Citation</th><th>Date Issued</th><th>Status</th><th>Amount Due</th></tr>`
	for _, row := range rows {
		body += fmt.Sprintf(`
<tr><td><a href="javascript:__doPostBack('ctl00$gv$lnkExpand','')">+</a></td><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>`,
			row.citation, row.date, row.status, row.amount)
	}
	body += "\n</table>"
	if p.totalDue != "" {
		body += fmt.Sprintf(`
<span id="lbl_totaldue_vTag">%s</span>`, p.totalDue)
	}
	return body
}

func (p *fakePortal) noResultsBody() string {
	if p.errorLabel == "" {
		return "<p>nothing</p>"
	}
	return fmt.Sprintf(`<span id="lblErrorTag">%s</span>`, p.errorLabel)
}

func (p *fakePortal) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		p.mu.Lock()
		p.getCount++
		page := p.formHTML("")
		p.mu.Unlock()
		fmt.Fprint(w, page)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}

	p.mu.Lock()
	p.postCount++
	validToken := p.issuedToken[r.PostFormValue("__VIEWSTATE")]
	p.mu.Unlock()

	if !validToken {
		http.Error(w, "stale or missing view state", http.StatusInternalServerError)
		return
	}

	switch r.PostFormValue("__EVENTTARGET") {
	case "ctl00$ContentPlaceHolder1$btnSubmit_TagSearch":
		p.handleTagSearch(w, r)
	case "ctl00$ContentPlaceHolder1$btnSubmit_CitSearch":
		p.handleCitationSearch(w, r)
	default:
		http.Error(w, "unknown event target", http.StatusInternalServerError)
	}
}

func (p *fakePortal) handleTagSearch(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	p.tagSearches = append(p.tagSearches, r.PostForm)
	if p.failTagSearch {
		p.mu.Unlock()
		http.Error(w, "search unavailable", http.StatusInternalServerError)
		return
	}
	tag := r.PostFormValue("ctl00$ContentPlaceHolder1$txtTag")
	rows, known := p.tagResults[tag]
	var page string
	if !known {
		page = p.formHTML(p.noResultsBody())
	} else {
		page = p.formHTML(p.resultsBody(rows))
	}
	p.mu.Unlock()
	fmt.Fprint(w, page)
}

func (p *fakePortal) handleCitationSearch(w http.ResponseWriter, r *http.Request) {
	current := atomic.AddInt32(&p.inFlight, 1)
	defer atomic.AddInt32(&p.inFlight, -1)
	for {
		peak := atomic.LoadInt32(&p.maxInFlight)
		if current <= peak || atomic.CompareAndSwapInt32(&p.maxInFlight, peak, current) {
			break
		}
	}
	if p.detailDelay > 0 {
		time.Sleep(p.detailDelay)
	}

	p.mu.Lock()
	p.citSearches = append(p.citSearches, r.PostForm)
	citation := r.PostFormValue("ctl00$ContentPlaceHolder1$txtcitn")
	failed := p.failCitations[citation]
	body := p.detailPages[citation]
	var page string
	if !failed {
		page = p.formHTML(body)
	}
	p.mu.Unlock()

	if failed {
		http.Error(w, "citation lookup failed", http.StatusInternalServerError)
		return
	}
	fmt.Fprint(w, page)
}

func (p *fakePortal) counts() (gets, posts int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.getCount, p.postCount
}

func detailSpans(citation, status, dueDate string) string {
	body := fmt.Sprintf(`<span id="lb_Citation">%s</span>
<span id="lb_Status">%s</span>
<span id="lb_Violation">EXPIRED METER</span>`, citation, status)
	if dueDate != "" {
		body += fmt.Sprintf(`
<span id="lb_duedate">%s</span>`, dueDate)
	}
	return body
}

func newTestSession(t *testing.T, baseURL string) *shared.PortalSession {
	t.Helper()
	session, err := shared.NewPortalSession(shared.SessionConfig{
		BaseURL: baseURL,
		Timeout: 5 * time.Second,
	})
	require.NoError(t, err)
	return session
}
