package entity

// Titles accepted for the title semantic field.
var Titles = []string{"Mr.", "Miss", "Mrs.", "Ms.", "Dr."}

// stateNames maps postal abbreviations to full state names, including DC and
// the territories that appear on congressional contact forms.
var stateNames = map[string]string{
	"AL": "Alabama",
	"AK": "Alaska",
	"AS": "American Samoa",
	"AZ": "Arizona",
	"AR": "Arkansas",
	"CA": "California",
	"CO": "Colorado",
	"CT": "Connecticut",
	"DE": "Delaware",
	"DC": "District of Columbia",
	"FL": "Florida",
	"GA": "Georgia",
	"GU": "Guam",
	"HI": "Hawaii",
	"ID": "Idaho",
	"IL": "Illinois",
	"IN": "Indiana",
	"IA": "Iowa",
	"KS": "Kansas",
	"KY": "Kentucky",
	"LA": "Louisiana",
	"ME": "Maine",
	"MD": "Maryland",
	"MA": "Massachusetts",
	"MI": "Michigan",
	"MN": "Minnesota",
	"MS": "Mississippi",
	"MO": "Missouri",
	"MT": "Montana",
	"NE": "Nebraska",
	"NV": "Nevada",
	"NH": "New Hampshire",
	"NJ": "New Jersey",
	"NM": "New Mexico",
	"NY": "New York",
	"NC": "North Carolina",
	"ND": "North Dakota",
	"OH": "Ohio",
	"OK": "Oklahoma",
	"OR": "Oregon",
	"PA": "Pennsylvania",
	"PR": "Puerto Rico",
	"RI": "Rhode Island",
	"SC": "South Carolina",
	"SD": "South Dakota",
	"TN": "Tennessee",
	"TX": "Texas",
	"UT": "Utah",
	"VI": "Virgin Islands",
	"VT": "Vermont",
	"VA": "Virginia",
	"WA": "Washington",
	"WV": "West Virginia",
	"WI": "Wisconsin",
	"WY": "Wyoming",
}

// StateName resolves a postal abbreviation to the full state name.
func StateName(abbr string) (string, bool) {
	name, ok := stateNames[abbr]
	return name, ok
}

// StateHouseValue builds the legacy two-part value used by old house contact
// forms: the abbreviation and full name concatenated with no separator.
// Kept verbatim for compatibility with the forms that still expect it.
func StateHouseValue(abbr string) (string, bool) {
	name, ok := stateNames[abbr]
	if !ok {
		return "", false
	}
	return abbr + name, true
}
