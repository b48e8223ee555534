package httpapi

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.trai.ch/zerr"

	"github.com/manenim/storefront/internal/listing"
	"github.com/manenim/storefront/pkg/limiter"
	"github.com/manenim/storefront/pkg/search"
)

var ErrInvalidParam = zerr.New("invalid query parameter")

// multipartOverhead is allowed on top of the file size for form headers.
const multipartOverhead = 1 << 20

var imageTypes = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
	".gif":  true,
}

type searchResponse struct {
	Query     string            `json:"query"`
	Total     int               `json:"total"`
	Count     int               `json:"count"`
	FromCache bool              `json:"from_cache"`
	TookMS    float64           `json:"took_ms"`
	Results   []listing.Listing `json:"results"`
}

func newSearchResponse(query string, res search.Result[listing.Listing]) searchResponse {
	matches := res.Matches
	if matches == nil {
		matches = []listing.Listing{}
	}
	return searchResponse{
		Query:     query,
		Total:     res.Total,
		Count:     len(matches),
		FromCache: res.FromCache,
		TookMS:    float64(res.Took.Microseconds()) / 1000,
		Results:   matches,
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"listings":  s.catalog.Len(),
		"loaded_at": s.catalog.LoadedAt(),
	})
}

// positiveInt parses an optional positive integer query parameter.
func positiveInt(c *gin.Context, name string, fallback int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid " + name})
		return 0, false
	}
	return n, true
}

func (s *Server) searchOptions(limit int) []search.SearchOption {
	if s.cfg.MaxResults > 0 && (limit <= 0 || limit > s.cfg.MaxResults) {
		limit = s.cfg.MaxResults
	}
	opts := []search.SearchOption{search.WithMinQueryLength(s.cfg.MinQueryLength)}
	if limit > 0 {
		opts = append(opts, search.WithMaxResults(limit))
	}
	if s.cfg.ResultTTL > 0 {
		opts = append(opts, search.WithResultTTL(s.cfg.ResultTTL))
	}
	return opts
}

func (s *Server) search(c *gin.Context) {
	limit, ok := positiveInt(c, "limit", s.cfg.MaxResults)
	if !ok {
		return
	}
	q := c.Query("q")
	res := s.catalog.Search(c.Request.Context(), q, s.searchOptions(limit)...)
	c.JSON(http.StatusOK, newSearchResponse(q, res))
}

func (s *Server) suggest(c *gin.Context) {
	limit, ok := positiveInt(c, "limit", s.cfg.MaxSuggestions)
	if !ok {
		return
	}
	suggestions := s.catalog.Suggest(c.Query("q"), limit)
	if suggestions == nil {
		suggestions = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}

var (
	equalsParams = []string{"make", "model", "fuel", "transmission", "body", "color", "location", "status"}
	rangeParams  = []string{"price", "year", "mileage"}
)

// filters reads equality filters as comma separated lists and ranges as
// min_<field> and max_<field>.
func filters(c *gin.Context) ([]search.Filter, error) {
	var out []search.Filter
	for _, field := range equalsParams {
		raw := c.Query(field)
		if raw == "" {
			continue
		}
		var values []string
		for _, v := range strings.Split(raw, ",") {
			if v = strings.TrimSpace(v); v != "" {
				values = append(values, v)
			}
		}
		if len(values) > 0 {
			out = append(out, search.Equals(field, values...))
		}
	}

	for _, field := range rangeParams {
		f := search.Filter{Field: field, Kind: search.KindRange}
		for _, bound := range []struct {
			param string
			dst   **float64
		}{
			{"min_" + field, &f.Min},
			{"max_" + field, &f.Max},
		} {
			raw := c.Query(bound.param)
			if raw == "" {
				continue
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return nil, zerr.With(zerr.Wrap(ErrInvalidParam, "invalid "+bound.param), "param", bound.param)
			}
			*bound.dst = &v
		}
		if f.Min != nil || f.Max != nil {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *Server) filter(c *gin.Context) {
	limit, ok := positiveInt(c, "limit", s.cfg.MaxResults)
	if !ok {
		return
	}
	fl, err := filters(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	fs, err := search.NewFilterSet(s.catalog.Indexer().Schema(), fl...)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	q := c.Query("q")
	res := s.catalog.Filter(c.Request.Context(), q, fs, s.searchOptions(limit)...)
	c.JSON(http.StatusOK, newSearchResponse(q, res))
}

func (s *Server) list(c *gin.Context) {
	listings := s.catalog.Listings()
	if listings == nil {
		listings = []listing.Listing{}
	}
	c.JSON(http.StatusOK, gin.H{"total": len(listings), "results": listings})
}

func (s *Server) get(c *gin.Context) {
	l, ok := s.catalog.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "listing not found"})
		return
	}
	c.JSON(http.StatusOK, l)
}

// formatPrice groups the integer part in thousands: 18500 becomes "18,500".
func formatPrice(p float64) string {
	digits := strconv.FormatInt(int64(p), 10)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(d)
	}
	return b.String()
}

// WhatsAppMessage is the prefilled enquiry text for l.
func WhatsAppMessage(l listing.Listing) string {
	msg := "Hello, I'm interested in the " + l.Title()
	if l.Price > 0 {
		msg += " listed at " + formatPrice(l.Price)
	}
	return msg + " (ref " + l.ID + "). Is it still available?"
}

func (s *Server) whatsapp(c *gin.Context) {
	if s.cfg.WhatsApp == "" {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "messaging is not configured"})
		return
	}
	l, ok := s.catalog.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "listing not found"})
		return
	}
	link := "https://wa.me/" + s.cfg.WhatsApp + "?text=" + url.QueryEscape(WhatsAppMessage(l))
	c.JSON(http.StatusOK, gin.H{"url": link})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "username and password are required"})
		return
	}
	if s.admin.Password == "" {
		s.logger.Warn("login attempted but no admin password is configured")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	userOK := equal(req.Username, s.admin.User)
	passOK := equal(req.Password, s.admin.Password)
	if !userOK || !passOK {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}

	token, exp, err := s.tokens.Issue(s.admin.User)
	if err != nil {
		s.logger.Error("failed to issue token", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	// Successful logins restore the auth quota.
	if err := s.guard.Reset(c.Request.Context(), limiter.CategoryAuth, requestInfo(c)); err != nil {
		s.logger.Warn("failed to reset auth quota", "error", err)
	}
	c.JSON(http.StatusOK, gin.H{
		"token":      token,
		"token_type": "Bearer",
		"expires_at": exp.UTC().Format(time.RFC3339),
	})
}

func (s *Server) upload(c *gin.Context) {
	limit := s.cfg.MaxUploadBytes
	if limit > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartOverhead)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field \"file\" is required"})
		return
	}
	if limit > 0 && fh.Size > limit {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !imageTypes[ext] {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "unsupported file type"})
		return
	}

	if err := os.MkdirAll(s.cfg.MediaDir, 0o755); err != nil {
		s.logger.Error("failed to create media directory", "dir", s.cfg.MediaDir, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	name := uuid.NewString() + ext
	if err := c.SaveUploadedFile(fh, filepath.Join(s.cfg.MediaDir, name)); err != nil {
		s.logger.Error("failed to store upload", "file", name, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	s.logger.Info("media uploaded", "file", name, "bytes", fh.Size)
	c.JSON(http.StatusCreated, gin.H{
		"id":   name,
		"url":  "/media/" + name,
		"size": fh.Size,
	})
}

type limitState struct {
	Limit     int64 `json:"limit"`
	Remaining int64 `json:"remaining"`
	Reset     int64 `json:"reset"`
}

func (s *Server) limits(c *gin.Context) {
	info := requestInfo(c)
	out := make(map[string]limitState, len(limiter.Categories))
	for _, cat := range limiter.Categories {
		dec, err := s.guard.Info(c.Request.Context(), cat, info)
		if err != nil {
			s.logger.Warn("failed to read limiter state", "category", string(cat), "error", err)
			continue
		}
		out[string(cat)] = limitState{
			Limit:     dec.Limit,
			Remaining: dec.Remaining,
			Reset:     dec.ResetTime.Unix(),
		}
	}
	c.JSON(http.StatusOK, gin.H{"limits": out})
}
