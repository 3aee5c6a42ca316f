package filter

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/petra-storage/petra/pkg/gateway/data"
	"github.com/petra-storage/petra/pkg/s3api/s3action"
	"github.com/petra-storage/petra/pkg/s3api/s3err"

	"golang.org/x/time/rate"
)

const FilterTypeRateLimit = "RateLimitFilter"

// RateLimitConfig holds rate limiting configuration. A zero rate disables
// the corresponding limit.
type RateLimitConfig struct {
	// Global limits, requests per second by operation class
	GlobalReadRPS  float64
	GlobalWriteRPS float64
	GlobalListRPS  float64

	// Per-client limits, keyed by client IP
	ClientReadRPS  float64
	ClientWriteRPS float64
	ClientListRPS  float64

	// Burst above the steady rate each limiter tolerates
	Burst int

	// CleanupInterval for removing stale per-client limiters
	CleanupInterval time.Duration
}

// DefaultRateLimitConfig returns generous limits meant as protection
// against runaway clients rather than capacity management.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		GlobalReadRPS:  10000,
		GlobalWriteRPS: 5000,
		GlobalListRPS:  1000,

		ClientReadRPS:  200,
		ClientWriteRPS: 100,
		ClientListRPS:  20,

		Burst:           50,
		CleanupInterval: 5 * time.Minute,
	}
}

// clientLimiters holds the per-operation-class limiters for one client IP.
type clientLimiters struct {
	read     *rate.Limiter
	write    *rate.Limiter
	list     *rate.Limiter
	lastUsed atomic.Int64
}

// RateLimitFilter rejects requests above the configured rates with SlowDown.
// Global limiters bound total throughput; per-IP limiters stop a single
// client, anonymous ones included, from starving the rest.
type RateLimitFilter struct {
	config RateLimitConfig

	globalRead  *rate.Limiter
	globalWrite *rate.Limiter
	globalList  *rate.Limiter

	clients sync.Map // client IP -> *clientLimiters
}

func NewRateLimitFilter(config RateLimitConfig) *RateLimitFilter {
	if config.Burst < 1 {
		config.Burst = 1
	}

	f := &RateLimitFilter{config: config}

	if config.GlobalReadRPS > 0 {
		f.globalRead = rate.NewLimiter(rate.Limit(config.GlobalReadRPS), config.Burst)
	}
	if config.GlobalWriteRPS > 0 {
		f.globalWrite = rate.NewLimiter(rate.Limit(config.GlobalWriteRPS), config.Burst)
	}
	if config.GlobalListRPS > 0 {
		f.globalList = rate.NewLimiter(rate.Limit(config.GlobalListRPS), config.Burst)
	}

	if config.CleanupInterval > 0 {
		go f.cleanupLoop()
	}

	return f
}

func (f *RateLimitFilter) Type() string {
	return FilterTypeRateLimit
}

func (f *RateLimitFilter) Run(d *data.Data) (Response, error) {
	if d.Ctx.Err() != nil {
		return nil, d.Ctx.Err()
	}

	opType := d.S3Info.Action.Type()

	if !allow(f.globalLimiter(opType)) {
		return nil, s3err.ErrSlowDown
	}

	if clientIP := getClientIP(d.Req); clientIP != "" {
		cl := f.getOrCreateClient(clientIP)
		if !allow(cl.limiter(opType)) {
			return nil, s3err.ErrSlowDown
		}
	}

	return Next{}, nil
}

func allow(l *rate.Limiter) bool {
	return l == nil || l.Allow()
}

func (f *RateLimitFilter) globalLimiter(opType s3action.OperationType) *rate.Limiter {
	switch opType {
	case s3action.OpWrite:
		return f.globalWrite
	case s3action.OpList:
		return f.globalList
	default:
		return f.globalRead
	}
}

func (cl *clientLimiters) limiter(opType s3action.OperationType) *rate.Limiter {
	switch opType {
	case s3action.OpWrite:
		return cl.write
	case s3action.OpList:
		return cl.list
	default:
		return cl.read
	}
}

func (f *RateLimitFilter) getOrCreateClient(ip string) *clientLimiters {
	if v, ok := f.clients.Load(ip); ok {
		cl := v.(*clientLimiters)
		cl.lastUsed.Store(time.Now().Unix())
		return cl
	}

	cl := &clientLimiters{}
	if f.config.ClientReadRPS > 0 {
		cl.read = rate.NewLimiter(rate.Limit(f.config.ClientReadRPS), f.config.Burst)
	}
	if f.config.ClientWriteRPS > 0 {
		cl.write = rate.NewLimiter(rate.Limit(f.config.ClientWriteRPS), f.config.Burst)
	}
	if f.config.ClientListRPS > 0 {
		cl.list = rate.NewLimiter(rate.Limit(f.config.ClientListRPS), f.config.Burst)
	}
	cl.lastUsed.Store(time.Now().Unix())

	actual, _ := f.clients.LoadOrStore(ip, cl)
	return actual.(*clientLimiters)
}

func (f *RateLimitFilter) cleanupLoop() {
	ticker := time.NewTicker(f.config.CleanupInterval)
	defer ticker.Stop()

	for range ticker.C {
		cutoff := time.Now().Add(-f.config.CleanupInterval * 2).Unix()
		f.clients.Range(func(key, value any) bool {
			cl := value.(*clientLimiters)
			if cl.lastUsed.Load() < cutoff {
				f.clients.Delete(key)
			}
			return true
		})
	}
}

// getClientIP extracts the client IP, honoring proxy headers when present.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ips := strings.Split(xff, ",")
		if len(ips) > 0 {
			return strings.TrimSpace(ips[0])
		}
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}

	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
