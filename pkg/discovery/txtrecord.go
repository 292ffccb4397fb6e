package discovery

import (
	"fmt"
	"strings"
)

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeAdapterTXT creates TXT records for adapter advertisement.
func EncodeAdapterTXT(info *AdapterInfo) TXTRecordMap {
	txt := make(TXTRecordMap)

	// Required fields
	txt[TXTKeySerial] = info.Serial
	txt[TXTKeyProtocol] = info.Protocol

	// Optional fields
	if info.Firmware != "" {
		txt[TXTKeyFirmware] = info.Firmware
	}
	if info.Name != "" {
		txt[TXTKeyName] = info.Name
	}
	if info.Vehicle != "" {
		txt[TXTKeyVehicle] = info.Vehicle
	}

	return txt
}

// DecodeAdapterTXT parses TXT records from an adapter advertisement.
func DecodeAdapterTXT(txt TXTRecordMap) (*AdapterInfo, error) {
	info := &AdapterInfo{}

	var ok bool
	info.Serial, ok = txt[TXTKeySerial]
	if !ok || info.Serial == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeySerial)
	}

	info.Protocol, ok = txt[TXTKeyProtocol]
	if !ok || info.Protocol == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingRequired, TXTKeyProtocol)
	}

	info.Firmware = txt[TXTKeyFirmware]
	info.Name = txt[TXTKeyName]

	if vin := txt[TXTKeyVehicle]; vin != "" {
		if len(vin) != 17 {
			return nil, fmt.Errorf("%w: VIN must be 17 characters", ErrInvalidTXTRecord)
		}
		info.Vehicle = strings.ToUpper(vin)
	}

	return info, nil
}

// TXTRecordsToStrings converts a TXT record map to "key=value" strings.
func TXTRecordsToStrings(txt TXTRecordMap) []string {
	result := make([]string, 0, len(txt))
	for k, v := range txt {
		result = append(result, fmt.Sprintf("%s=%s", k, v))
	}
	return result
}

// TXTRecordsFromStrings parses "key=value" strings into a TXT record map.
// Entries without "=" are ignored.
func TXTRecordsFromStrings(strs []string) TXTRecordMap {
	txt := make(TXTRecordMap)
	for _, s := range strs {
		k, v, found := strings.Cut(s, "=")
		if !found || k == "" {
			continue
		}
		txt[k] = v
	}
	return txt
}
