package transformer

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
	"time"

	"smart-industry/internal/domain"
)

// LegacyTimestampLayout 设备上报的默认时间格式
const LegacyTimestampLayout = "2006-01-02 15:04:05"

// fieldAliases 逻辑指标名 -> 可接受的线上字段名（按优先级）
var fieldAliases = map[string][]string{
	domain.MetricTemperature: {"temperature", "temp"},
	domain.MetricHumidity:    {"humidity", "hum"},
	domain.MetricVOC:         {"voc"},
	domain.MetricCO:          {"co"},
	domain.MetricPM1:         {"pm1", "pm1_0"},
	domain.MetricPM25:        {"pm2_5", "pm", "pm25", "pm2.5"},
	domain.MetricPM10:        {"pm10"},
}

// Normalize 校验原始上报数据并转换为 SensorSample
// 不做任何 I/O；失败时返回 *domain.ValidationError
func Normalize(raw map[string]any, now time.Time) (*domain.SensorSample, error) {
	if raw == nil {
		return nil, &domain.ValidationError{Reason: "Empty payload"}
	}

	deviceID, err := parseDeviceID(raw["device_id"])
	if err != nil {
		return nil, err
	}

	consumed := map[string]bool{"device_id": true, "timestamp": true}
	values := make(map[string]float64, len(domain.FeatureOrder))

	for _, metric := range domain.FeatureOrder {
		key, v, ok := lookup(raw, fieldAliases[metric])
		if !ok {
			return nil, domain.NewMissingFieldError(metric)
		}
		f, err := parseFloat(v)
		if err != nil {
			return nil, domain.NewInvalidFieldError(key)
		}
		values[metric] = f
		consumed[key] = true
	}

	ts := now
	if v, ok := raw["timestamp"]; ok && v != nil {
		parsed, err := parseTimestamp(v)
		if err != nil {
			return nil, domain.NewInvalidFieldError("timestamp")
		}
		ts = parsed
	}

	sample := &domain.SensorSample{
		DeviceID:    deviceID,
		Timestamp:   ts,
		Temperature: values[domain.MetricTemperature],
		Humidity:    values[domain.MetricHumidity],
		VOC:         values[domain.MetricVOC],
		CO:          values[domain.MetricCO],
		PM1:         values[domain.MetricPM1],
		PM25:        values[domain.MetricPM25],
		PM10:        values[domain.MetricPM10],
		Raw:         make(map[string]any, len(raw)),
	}

	for k, v := range raw {
		sample.Raw[k] = v
		if consumed[k] {
			continue
		}
		if sample.Extra == nil {
			sample.Extra = map[string]any{}
		}
		sample.Extra[k] = v
	}

	return sample, nil
}

func lookup(raw map[string]any, keys []string) (string, any, bool) {
	for _, k := range keys {
		if v, ok := raw[k]; ok && v != nil {
			return k, v, true
		}
	}
	return "", nil, false
}

func parseDeviceID(v any) (string, error) {
	var id string
	switch val := v.(type) {
	case string:
		id = strings.TrimSpace(val)
	case float64:
		id = strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		id = val.String()
	case int:
		id = strconv.Itoa(val)
	case int64:
		id = strconv.FormatInt(val, 10)
	case nil:
	default:
		return "", domain.NewInvalidFieldError("device_id")
	}
	if id == "" {
		return "", &domain.ValidationError{Field: "device_id", Reason: "Device ID missing"}
	}
	if utf8.RuneCountInString(id) > domain.MaxIDLength {
		return "", &domain.ValidationError{Field: "device_id", Reason: fmt.Sprintf("Device ID longer than %d characters", domain.MaxIDLength)}
	}
	return id, nil
}

func parseFloat(v any) (float64, error) {
	var f float64
	switch val := v.(type) {
	case float64:
		f = val
	case float32:
		f = float64(val)
	case int:
		f = float64(val)
	case int64:
		f = float64(val)
	case json.Number:
		parsed, err := val.Float64()
		if err != nil {
			return 0, err
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, err
		}
		f = parsed
	default:
		return 0, fmt.Errorf("cannot convert %T to float", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite value")
	}
	return f, nil
}

// parseTimestamp 支持 "2006-01-02 15:04:05"（本地时间）、RFC3339、unix 秒
func parseTimestamp(v any) (time.Time, error) {
	switch val := v.(type) {
	case string:
		s := strings.TrimSpace(val)
		if t, err := time.ParseInLocation(LegacyTimestampLayout, s, time.Local); err == nil {
			return t, nil
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t, nil
		}
		if sec, err := strconv.ParseFloat(s, 64); err == nil {
			return unixSeconds(sec), nil
		}
		return time.Time{}, fmt.Errorf("unsupported timestamp format: %q", s)
	default:
		sec, err := parseFloat(v)
		if err != nil {
			return time.Time{}, err
		}
		return unixSeconds(sec), nil
	}
}

func unixSeconds(sec float64) time.Time {
	whole, frac := math.Modf(sec)
	return time.Unix(int64(whole), int64(frac*1e9))
}
