package gateway

import "net/http"

// BuildEngineForTest exposes the unexported buildEngine to the external
// gateway_test package, the same export-for-test pattern net/http and
// friends use for otherwise-private constructors.
func BuildEngineForTest(sdls, hosts map[string]string, httpClient *http.Client) (*executionEngine, error) {
	return buildEngine(sdls, hosts, httpClient)
}

// CopyMapForTest exposes the unexported copyMap helper to gateway_test.
func CopyMapForTest(m map[string]string) map[string]string {
	return copyMap(m)
}

// FetchSDLForTest exposes the unexported fetchSDL to gateway_test.
func FetchSDLForTest(host string, httpClient *http.Client, retry RetryOption) (string, error) {
	return fetchSDL(host, httpClient, retry)
}
