package dashboard

import "github.com/hitoshi/agriguard/internal/model"

// NavItem はナビゲーションの項目。
type NavItem struct {
	Label  string `json:"label"`
	Path   string `json:"path"`
	Active bool   `json:"active"`
}

var navItems = []NavItem{
	{Label: "Dashboard", Path: "/dashboard"},
	{Label: "Live Control", Path: "/live"},
	{Label: "Analytics", Path: "/analytics"},
	{Label: "Help", Path: "/help"},
}

// Navigation は現在のパスを強調したナビゲーション項目を返す。
func Navigation(currentPath string) []NavItem {
	items := make([]NavItem, len(navItems))
	for i, item := range navItems {
		item.Active = item.Path == currentPath
		items[i] = item
	}
	return items
}

// ProtectedPaths はルートガードで保護するビューのパス。
func ProtectedPaths() []string {
	paths := make([]string, len(navItems))
	for i, item := range navItems {
		paths[i] = item.Path
	}
	return paths
}

// Chrome は保護されたビュー共通のヘッダー部分。
// PhotoURLが空の場合は汎用アイコンを表示する。
type Chrome struct {
	DisplayName string    `json:"displayName"`
	Email       string    `json:"email,omitempty"`
	PhotoURL    string    `json:"photoURL,omitempty"`
	Navigation  []NavItem `json:"navigation"`
	LogoutPath  string    `json:"logoutPath"`
}

// NewChrome はSessionからヘッダー部分を組み立てる。
func NewChrome(s *model.Session, currentPath string) Chrome {
	c := Chrome{
		DisplayName: s.DisplayNameOrPlaceholder(),
		Navigation:  Navigation(currentPath),
		LogoutPath:  "/auth/logout",
	}
	if s != nil {
		c.Email = s.Email
		c.PhotoURL = s.PhotoURL
	}
	return c
}

// DashboardView は/dashboardの表示モデル。
type DashboardView struct {
	Chrome       Chrome        `json:"chrome"`
	Greeting     string        `json:"greeting"`
	Weather      Weather       `json:"weather"`
	Drone        DroneStatus   `json:"drone"`
	CropHealth   CropHealth    `json:"cropHealth"`
	CropOptions  []string      `json:"cropOptions"`
	QuickActions []QuickAction `json:"quickActions"`
}

// NewDashboardView は/dashboardの表示モデルを組み立てる。
func NewDashboardView(s *model.Session) DashboardView {
	return DashboardView{
		Chrome:       NewChrome(s, "/dashboard"),
		Greeting:     "Welcome back, " + s.DisplayNameOrPlaceholder(),
		Weather:      CurrentWeather(),
		Drone:        CurrentDroneStatus(),
		CropHealth:   CurrentCropHealth(),
		CropOptions:  CropOptions(),
		QuickActions: QuickActions(),
	}
}

// FieldZone はライブ画面の圃場マップ上の区画。座標は百分率。
type FieldZone struct {
	ID     int    `json:"id"`
	X      int    `json:"x"`
	Y      int    `json:"y"`
	Status string `json:"status"` // healthy, mild, severe
	Size   string `json:"size"`   // large, medium, small
}

// Point は圃場マップ上の位置。
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// LiveView は/liveの表示モデル。
type LiveView struct {
	Chrome         Chrome      `json:"chrome"`
	Sector         string      `json:"sector"`
	GPS            string      `json:"gps"`
	Zones          []FieldZone `json:"zones"`
	DronePosition  Point       `json:"dronePosition"`
	SprayIntensity int         `json:"sprayIntensity"`
	Drone          DroneStatus `json:"drone"`
}

// FieldZones は圃場マップの区画。
func FieldZones() []FieldZone {
	return []FieldZone{
		{ID: 1, X: 20, Y: 30, Status: "healthy", Size: "large"},
		{ID: 2, X: 45, Y: 25, Status: "mild", Size: "medium"},
		{ID: 3, X: 70, Y: 40, Status: "severe", Size: "small"},
		{ID: 4, X: 35, Y: 60, Status: "healthy", Size: "large"},
		{ID: 5, X: 60, Y: 70, Status: "mild", Size: "small"},
	}
}

// NewLiveView は/liveの表示モデルを組み立てる。
func NewLiveView(s *model.Session) LiveView {
	return LiveView{
		Chrome:         NewChrome(s, "/live"),
		Sector:         "Sector A-12",
		GPS:            "28.6139°N, 77.2090°E",
		Zones:          FieldZones(),
		DronePosition:  Point{X: 52, Y: 45},
		SprayIntensity: 50,
		Drone:          CurrentDroneStatus(),
	}
}

// KeyMetric は分析画面の指標カード。
type KeyMetric struct {
	Label string `json:"label"`
	Value string `json:"value"`
	Trend string `json:"trend"`
	Up    bool   `json:"up"`
}

// HealthPoint は月ごとの作物健康度の内訳。
type HealthPoint struct {
	Month   string `json:"month"`
	Healthy int    `json:"healthy"`
	Mild    int    `json:"mild"`
	Severe  int    `json:"severe"`
}

// SprayRecord は散布履歴の1行。
type SprayRecord struct {
	Date       string  `json:"date"`
	AreaHa     float64 `json:"areaHa"`
	PesticideL float64 `json:"pesticideL"`
	SavingsPct int     `json:"savingsPct"`
	Status     string  `json:"status"`
}

// Savings は農薬削減の進捗。
type Savings struct {
	AveragePct     int    `json:"averagePct"`
	TargetPct      int    `json:"targetPct"`
	MoneySaved     string `json:"moneySaved"`
	PesticideSaved string `json:"pesticideSaved"`
}

// AnalyticsView は/analyticsの表示モデル。
type AnalyticsView struct {
	Chrome       Chrome        `json:"chrome"`
	KeyMetrics   []KeyMetric   `json:"keyMetrics"`
	HealthTrend  []HealthPoint `json:"healthTrend"`
	Savings      Savings       `json:"savings"`
	SprayHistory []SprayRecord `json:"sprayHistory"`
}

// HealthTrend は月別の作物健康度。
func HealthTrend() []HealthPoint {
	return []HealthPoint{
		{Month: "Jan", Healthy: 75, Mild: 20, Severe: 5},
		{Month: "Feb", Healthy: 78, Mild: 18, Severe: 4},
		{Month: "Mar", Healthy: 72, Mild: 23, Severe: 5},
		{Month: "Apr", Healthy: 80, Mild: 15, Severe: 5},
		{Month: "May", Healthy: 85, Mild: 12, Severe: 3},
		{Month: "Jun", Healthy: 82, Mild: 16, Severe: 2},
	}
}

// SprayHistory は直近の散布履歴。
func SprayHistory() []SprayRecord {
	return []SprayRecord{
		{Date: "2024-01-15", AreaHa: 12.5, PesticideL: 8.5, SavingsPct: 35, Status: "Completed"},
		{Date: "2024-01-14", AreaHa: 8.2, PesticideL: 5.8, SavingsPct: 42, Status: "Completed"},
		{Date: "2024-01-13", AreaHa: 15.3, PesticideL: 11.2, SavingsPct: 28, Status: "Completed"},
		{Date: "2024-01-12", AreaHa: 6.8, PesticideL: 4.1, SavingsPct: 48, Status: "Completed"},
	}
}

// NewAnalyticsView は/analyticsの表示モデルを組み立てる。
func NewAnalyticsView(s *model.Session) AnalyticsView {
	return AnalyticsView{
		Chrome: NewChrome(s, "/analytics"),
		KeyMetrics: []KeyMetric{
			{Label: "Total Area Treated", Value: "156.8 ha", Trend: "+12% vs last month", Up: true},
			{Label: "Pesticide Saved", Value: "38.5%", Trend: "+5% efficiency", Up: true},
			{Label: "Flight Hours", Value: "284.2 hrs", Trend: "-3% downtime", Up: false},
			{Label: "Avg Health Score", Value: "82.5%", Trend: "+8% improved", Up: true},
		},
		HealthTrend: HealthTrend(),
		Savings: Savings{
			AveragePct:     42,
			TargetPct:      35,
			MoneySaved:     "₹28,450",
			PesticideSaved: "186L",
		},
		SprayHistory: SprayHistory(),
	}
}

// FAQ はヘルプ画面のよくある質問。
type FAQ struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Category string `json:"category"`
}

// HelpView は/helpの表示モデル。
type HelpView struct {
	Chrome  Chrome `json:"chrome"`
	FAQs    []FAQ  `json:"faqs"`
	ChatURL string `json:"chatURL,omitempty"`
}

// FAQs はヘルプ画面のよくある質問。
func FAQs() []FAQ {
	return []FAQ{
		{
			Question: "How do I refill the pesticide tank?",
			Answer:   "1. Land the drone safely on level ground\n2. Turn off the drone completely\n3. Open the tank compartment using the release lever\n4. Use the provided funnel to add pesticide\n5. Close and secure the compartment\n6. Run a system check before next flight",
			Category: "maintenance",
		},
		{
			Question: "What should I do if the drone battery is low?",
			Answer:   "When battery drops below 20%:\n1. The drone will automatically return to base\n2. Replace with a fully charged battery\n3. Charge the used battery for 2-3 hours\n4. Always keep spare batteries ready during operations",
			Category: "battery",
		},
		{
			Question: "How accurate is crop health detection?",
			Answer:   "Our AI system has 94% accuracy in detecting:\n• Healthy crops (Green zones)\n• Mild infections (Yellow zones)\n• Severe infections (Red zones)\nThe system uses multispectral imaging and machine learning for precise detection.",
			Category: "ai",
		},
		{
			Question: "Can I use the drone in windy conditions?",
			Answer:   "Safe wind conditions:\n• Wind speed: Below 15 km/h\n• Avoid gusty conditions\n• The drone will alert you if conditions are unsafe\n• Always check weather forecast before operations",
			Category: "weather",
		},
		{
			Question: "How do I switch between Auto and Manual mode?",
			Answer:   "From the dashboard:\n1. Go to Live Drone Control\n2. Find the Mode toggle in the control panel\n3. Switch between Auto (AI-guided) and Manual modes\n4. In Manual mode, you have full control over spraying patterns",
			Category: "operation",
		},
	}
}

// NewHelpView は/helpの表示モデルを組み立てる。
func NewHelpView(s *model.Session, chatURL string) HelpView {
	return HelpView{
		Chrome:  NewChrome(s, "/help"),
		FAQs:    FAQs(),
		ChatURL: chatURL,
	}
}

// AuthEntry はランディング画面の認証手段。
type AuthEntry struct {
	Method string `json:"method"`
	Label  string `json:"label"`
	Path   string `json:"path"`
}

// Feature はランディング画面の機能紹介。
type Feature struct {
	Title string `json:"title"`
}

// LandingView は/の表示モデル。
// SignedInはナビゲーションの表示切り替えにのみ使い、自動的な遷移は行わない。
type LandingView struct {
	Title            string      `json:"title"`
	Headline         string      `json:"headline"`
	Features         []Feature   `json:"features"`
	AuthEntries      []AuthEntry `json:"authEntries"`
	RecaptchaSiteKey string      `json:"recaptchaSiteKey,omitempty"`
	ChatURL          string      `json:"chatURL,omitempty"`
	CSRFTokenPath    string      `json:"csrfTokenPath"`
	SignedIn         bool        `json:"signedIn"`
}

// NewLandingView は/の表示モデルを組み立てる。
func NewLandingView(signedIn bool, recaptchaSiteKey, chatURL string) LandingView {
	return LandingView{
		Title:    "Agriguard",
		Headline: "The Future of Farming is Here",
		Features: []Feature{
			{Title: "AI Crop Analysis"},
			{Title: "Automated Spraying"},
			{Title: "AI Help Desk"},
			{Title: "Live Drone Control"},
		},
		AuthEntries: []AuthEntry{
			{Method: string(model.AuthMethodFederated), Label: "Continue with Google", Path: "/auth/google/login"},
			{Method: string(model.AuthMethodPassword), Label: "Email", Path: "/auth/email"},
			{Method: string(model.AuthMethodPhone), Label: "Phone", Path: "/auth/phone/send"},
		},
		RecaptchaSiteKey: recaptchaSiteKey,
		ChatURL:          chatURL,
		CSRFTokenPath:    "/auth/csrf-token",
		SignedIn:         signedIn,
	}
}
