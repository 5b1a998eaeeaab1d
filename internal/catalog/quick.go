package catalog

import "physiotrack-backend/internal/model"

var quickTemplates = []model.QuickTemplate{
	{Name: "핫팩 (Hot Pack)", Label: "HP", Minutes: 10, EnableTimer: true, Color: "bg-red-500"},
	{Name: "ICT", Label: "ICT", Minutes: 10, EnableTimer: false, Color: "bg-blue-500"},
	{Name: "자기장 (Magnetic)", Label: "Mg", Minutes: 10, EnableTimer: false, Color: "bg-purple-500"},
	{Name: "레이저 (Laser)", Label: "La", Minutes: 10, EnableTimer: true, Color: "bg-pink-500"},
	{Name: "콜드팩 (Ice)", Label: "Ice", Minutes: 10, EnableTimer: true, Color: "bg-cyan-500"},
	{Name: "적외선 (IR)", Label: "IR", Minutes: 10, EnableTimer: true, Color: "bg-red-600"},
	{Name: "마이크로 (MW)", Label: "MW", Minutes: 5, EnableTimer: true, Color: "bg-yellow-500"},
	{Name: "크라이오 (Cryo)", Label: "Cryo", Minutes: 2, EnableTimer: true, Color: "bg-sky-400"},
	{Name: "운동치료 (Exercise)", Label: "Ex", Minutes: 5, EnableTimer: true, Color: "bg-green-500"},
}

// QuickTemplates lists the one-tap treatments.
func QuickTemplates() []model.QuickTemplate {
	out := make([]model.QuickTemplate, len(quickTemplates))
	copy(out, quickTemplates)
	return out
}

// QuickTemplate finds a template by its label, e.g. "HP".
func QuickTemplate(label string) (model.QuickTemplate, bool) {
	for _, t := range quickTemplates {
		if t.Label == label {
			return t, true
		}
	}
	return model.QuickTemplate{}, false
}
