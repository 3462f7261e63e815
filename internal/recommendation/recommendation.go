// Package recommendation holds the request and result payloads exchanged with
// the network recommendation provider. The dispatcher treats them as opaque;
// only the transport and the scorer look inside.
package recommendation

import "strings"

// NoNetworkID marks a config that is not known to the caller's network list.
const NoNetworkID = -1

// ScanResult describes one access point seen during a scan.
type ScanResult struct {
	SSID         string `json:"ssid"`
	BSSID        string `json:"bssid"`
	RSSI         int    `json:"rssi"`
	Frequency    int    `json:"frequency"`
	Capabilities string `json:"capabilities,omitempty"`
}

// Is5GHz reports whether the access point operates in the 5 GHz band.
func (s ScanResult) Is5GHz() bool {
	return s.Frequency > 4900 && s.Frequency < 5900
}

// Secure reports whether the access point advertises any encryption.
func (s ScanResult) Secure() bool {
	c := strings.ToUpper(s.Capabilities)
	for _, scheme := range []string{"WEP", "PSK", "EAP", "SAE", "OWE"} {
		if strings.Contains(c, scheme) {
			return true
		}
	}
	return false
}

// WifiConfig identifies a network the caller can connect to.
type WifiConfig struct {
	NetworkID int    `json:"network_id"`
	SSID      string `json:"ssid"`
	BSSID     string `json:"bssid,omitempty"`
}

// Request is the payload of one recommendation call.
type Request struct {
	ScanResults        []ScanResult `json:"scan_results"`
	DefaultConfig      *WifiConfig  `json:"default_config,omitempty"`
	ConnectedConfig    *WifiConfig  `json:"connected_config,omitempty"`
	ConnectableConfigs []WifiConfig `json:"connectable_configs,omitempty"`

	LastSelectedNetworkID        int   `json:"last_selected_network_id"`
	LastSelectedNetworkTimestamp int64 `json:"last_selected_network_timestamp,omitempty"`
}

// Result is the outcome of one recommendation call. A nil WifiConfig means
// nothing was recommended.
type Result struct {
	WifiConfig *WifiConfig `json:"wifi_config"`
}

// Empty reports whether the result carries no recommendation.
func (r Result) Empty() bool {
	return r.WifiConfig == nil
}
