package config

// sector pairs a DAC 5-digit purpose code with its label.
type sector struct {
	Code  string
	Label string
}

// securitySectors is the fixed set of DAC purpose codes harvested by this tool,
// covering security, justice, governance and disaster risk.
var securitySectors = []sector{
	{"15132", "Police"},
	{"16063", "Narcotics control"},
	{"15261", "Child soldiers (prevention and demobilisation)"},
	{"15190", "Facilitation of orderly, safe, regular and responsible migration and mobility"},
	{"15230", "Participation in international peacekeeping operations"},
	{"15136", "Immigration"},
	{"15134", "Judicial affairs"},
	{"15130", "Legal and judicial development"},
	{"15137", "Prisons"},
	{"15210", "Security system management and reform"},
	{"15131", "Justice, law and order policy, planning and administration"},
	{"15111", "Public finance management (PFM)"},
	{"15125", "Public procurement"},
	{"15120", "Public sector financial management"},
	{"15113", "Anti-corruption organisations and institutions"},
	{"15152", "Legislatures and political parties"},
	{"15135", "Ombudsman"},
	{"15163", "Media and free flow of information"},
	{"15220", "Civilian peace-building, conflict prevention and resolution"},
	{"15180", "Ending violence against women and girls"},
	{"15240", "Reintegration and SALW control"},
	{"15250", "Removal of land mines and explosive remnants of war"},
	{"16080", "Social dialogue"},
	{"15170", "Women's rights organisations and movements, and government institutions"},
	{"15150", "Democratic participation and civil society"},
	{"15160", "Human rights"},
	{"15162", "Human rights"},
	{"15151", "Elections"},
	{"74010", "Disaster risk prevention and preparedness"},
	{"43060", "Disaster risk reduction"},
	{"15133", "Fire and rescue services"},
}

var sectorLabels = func() map[string]string {
	m := make(map[string]string, len(securitySectors))
	for _, s := range securitySectors {
		m[s.Code] = s.Label
	}
	return m
}()

// SectorCodes returns the configured classification codes in their declared order.
func SectorCodes() []string {
	codes := make([]string, 0, len(securitySectors))
	for _, s := range securitySectors {
		codes = append(codes, s.Code)
	}
	return codes
}

// SectorLabel returns the human label for a configured code, or "" if unknown.
func SectorLabel(code string) string {
	return sectorLabels[code]
}
