// Package dashboard は保護されたビューが表示するウィジェットのデータを提供する。
// 値はすべて固定値であり、表示用の算術以外の計算は行わない。
package dashboard

import "math"

// Level はゲージの色分けに使う段階。
type Level string

const (
	LevelGood     Level = "good"
	LevelWarning  Level = "warning"
	LevelCritical Level = "critical"
)

// Weather は天気カードの表示内容。
type Weather struct {
	TemperatureC int    `json:"temperatureC"`
	HumidityPct  int    `json:"humidityPct"`
	Condition    string `json:"condition"` // sunny, cloudy, rainy
	RainAlert    bool   `json:"rainAlert"`
}

// CurrentWeather は天気カードの値を返す。
func CurrentWeather() Weather {
	return Weather{
		TemperatureC: 32,
		HumidityPct:  65,
		Condition:    "sunny",
		RainAlert:    false,
	}
}

// Gauge は残量ゲージ。
type Gauge struct {
	Percent int   `json:"percent"`
	Level   Level `json:"level"`
}

// DroneStatus はドローン状態カードの表示内容。
type DroneStatus struct {
	Battery   Gauge    `json:"battery"`
	Tank      Gauge    `json:"tank"`
	Mode      string   `json:"mode"`
	Connected bool     `json:"connected"`
	Status    string   `json:"status"`
	Alerts    []string `json:"alerts"`
}

// CurrentDroneStatus はドローン状態カードの値を返す。
func CurrentDroneStatus() DroneStatus {
	return newDroneStatus(85, 65, "Auto", true, "Active")
}

func newDroneStatus(battery, tank int, mode string, connected bool, status string) DroneStatus {
	alerts := []string{}
	if battery < 20 {
		alerts = append(alerts, "Low Battery!")
	}
	if tank < 15 {
		alerts = append(alerts, "Tank Almost Empty!")
	}
	return DroneStatus{
		Battery:   Gauge{Percent: battery, Level: BatteryLevel(battery)},
		Tank:      Gauge{Percent: tank, Level: TankLevel(tank)},
		Mode:      mode,
		Connected: connected,
		Status:    status,
		Alerts:    alerts,
	}
}

// BatteryLevel はバッテリー残量の段階を返す。50%超はgood、20%超はwarning。
func BatteryLevel(percent int) Level {
	switch {
	case percent > 50:
		return LevelGood
	case percent > 20:
		return LevelWarning
	default:
		return LevelCritical
	}
}

// TankLevel は農薬タンク残量の段階を返す。30%超はgood、15%超はwarning。
func TankLevel(percent int) Level {
	switch {
	case percent > 30:
		return LevelGood
	case percent > 15:
		return LevelWarning
	default:
		return LevelCritical
	}
}

// RingRadius はリングチャートの半径。
const RingRadius = 70

// RingSegment はリングチャートの1区間。
// Arcは円周に対する長さ、Offsetは先行区間の長さの累積。
type RingSegment struct {
	Label   string  `json:"label"`
	Percent int     `json:"percent"`
	Arc     float64 `json:"arc"`
	Offset  float64 `json:"offset"`
}

// CropHealth は作物健康度カードの表示内容。
type CropHealth struct {
	Healthy       int           `json:"healthy"`
	Mild          int           `json:"mild"`
	Severe        int           `json:"severe"`
	TotalAreaHa   float64       `json:"totalAreaHa"`
	Circumference float64       `json:"circumference"`
	Segments      []RingSegment `json:"segments"`
}

// CurrentCropHealth は作物健康度カードの値を返す。
func CurrentCropHealth() CropHealth {
	return newCropHealth(68, 22, 10, 45.8)
}

func newCropHealth(healthy, mild, severe int, areaHa float64) CropHealth {
	return CropHealth{
		Healthy:       healthy,
		Mild:          mild,
		Severe:        severe,
		TotalAreaHa:   areaHa,
		Circumference: 2 * math.Pi * RingRadius,
		Segments: RingSegments(RingRadius, []RingSegment{
			{Label: "Healthy", Percent: healthy},
			{Label: "Mild", Percent: mild},
			{Label: "Severe", Percent: severe},
		}),
	}
}

// RingSegments は各区間のArcとOffsetを埋めた新しいスライスを返す。
// 合計が0の場合はすべて0とする。
func RingSegments(radius float64, segments []RingSegment) []RingSegment {
	total := 0
	for _, s := range segments {
		total += s.Percent
	}

	circumference := 2 * math.Pi * radius
	out := make([]RingSegment, len(segments))
	offset := 0.0
	for i, s := range segments {
		out[i] = s
		if total == 0 {
			continue
		}
		out[i].Arc = float64(s.Percent) / float64(total) * circumference
		out[i].Offset = offset
		offset += out[i].Arc
	}
	return out
}

// CropOptions は作物種別の選択肢。
func CropOptions() []string {
	return []string{"Wheat", "Rice", "Corn", "Cotton", "Sugarcane", "Others"}
}

// QuickAction はクイックアクションボタン。
// 押下時はトーストを表示するだけで、ドローンへの指示は行わない。
type QuickAction struct {
	Label      string `json:"label"`
	Subtitle   string `json:"subtitle"`
	ToastTitle string `json:"toastTitle"`
	ToastBody  string `json:"toastBody"`
}

// QuickActions はダッシュボードのクイックアクション。
func QuickActions() []QuickAction {
	return []QuickAction{
		{
			Label:      "Start Auto Spray",
			Subtitle:   "AI-guided spraying",
			ToastTitle: "Auto Spray Initiated",
			ToastBody:  "Drone is scanning for infected areas...",
		},
		{
			Label:      "Manual Control",
			Subtitle:   "Take control",
			ToastTitle: "Manual Mode Active",
			ToastBody:  "You can now control the drone manually.",
		},
	}
}
