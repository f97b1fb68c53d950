package reference

// HistoricDeathToll is a past pandemic's death toll, used as a comparison
// scale by chart renderers.
type HistoricDeathToll struct {
	Name   string `json:"name"`
	Year   string `json:"year"`
	Deaths int64  `json:"deaths"`
	Label  string `json:"label"`
}

// Source: visualcapitalist.com/history-of-pandemics-deadliest
var historicDeathTolls = []HistoricDeathToll{
	{Name: "SARS 2002", Year: "2002", Deaths: 770, Label: "770"},
	{Name: "MERS 2012", Year: "2012", Deaths: 850, Label: "850"},
	{Name: "Ebola 2014", Year: "2014", Deaths: 11000, Label: "11K"},
	{Name: "Yellow Fever Late 1800s", Year: "Late 1800s", Deaths: 125000, Label: "100-150K"},
	{Name: "Swine Flu 2009", Year: "2009", Deaths: 200000, Label: "200K"},
	{Name: "18th Century Great Plagues", Year: "1700", Deaths: 600000, Label: "600K"},
	{Name: "Japanese Smallpox 735, Cholera 6 1817, Russian Flu 1889, Hong Kong Flu 1968", Year: "735", Deaths: 1000000, Label: "1M"},
	{Name: "Asian Flu 1957", Year: "1957", Deaths: 1100000, Label: "1.1M"},
	{Name: "17th Century Great Plagues", Year: "1600", Deaths: 3000000, Label: "3M"},
	{Name: "Antonine Plague 165", Year: "165", Deaths: 5000000, Label: "5M"},
	{Name: "The Third Plague 1855", Year: "1855", Deaths: 12000000, Label: "12M"},
	{Name: "HIV/AIDS 1981", Year: "1981", Deaths: 25000000, Label: "25-35M"},
	{Name: "Plague of Justinian 541", Year: "541", Deaths: 30000000, Label: "30-50M"},
	{Name: "Spanish Flu 1918", Year: "1918", Deaths: 40000000, Label: "40-50M"},
	{Name: "Smallpox 1520", Year: "1520", Deaths: 56000000, Label: "56M"},
	{Name: "Bubonic Plague 1347", Year: "1347", Deaths: 200000000, Label: "200M"},
}

// HistoricDeathTolls returns the comparison list ordered by death toll.
func HistoricDeathTolls() []HistoricDeathToll {
	out := make([]HistoricDeathToll, len(historicDeathTolls))
	copy(out, historicDeathTolls)
	return out
}
