package middlewares

import (
	"DentalClinic/database"
	"net"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// TenantHeader names the clinic when the host carries no subdomain, as in local setups.
const TenantHeader = "X-Clinic-Tenant"

// TenantMiddleware resolves the clinic from the subdomain of the Host header
// and stores it in the request context.
func TenantMiddleware(baseDomain string) gin.HandlerFunc {
	return func(c *gin.Context) {
		tenant := TenantFromHost(c.Request.Host, baseDomain)
		if tenant == "" {
			tenant = strings.ToLower(strings.TrimSpace(c.GetHeader(TenantHeader)))
		}
		if !database.ValidTenant(tenant) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "unknown clinic"})
			return
		}
		c.Request = c.Request.WithContext(database.WithTenant(c.Request.Context(), tenant))
		c.Next()
	}
}

// TenantFromHost returns the leftmost label of host when host is a subdomain
// of baseDomain, or "" otherwise.
func TenantFromHost(host, baseDomain string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	host = strings.ToLower(strings.TrimSuffix(host, "."))
	suffix := "." + strings.ToLower(strings.Trim(baseDomain, "."))
	if baseDomain == "" || !strings.HasSuffix(host, suffix) {
		return ""
	}
	sub := strings.TrimSuffix(host, suffix)
	if i := strings.LastIndex(sub, "."); i >= 0 {
		sub = sub[i+1:]
	}
	return sub
}
