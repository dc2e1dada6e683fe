package catalog

// Default returns the built-in catalog: four curated sources, then the
// generic .edu and .org domains, and the ten-field lexicon.
func Default() Catalog {
	return Catalog{
		Sources:       defaultSources(),
		EduDomains:    []string{"mit.edu", "stanford.edu", "harvard.edu", "caltech.edu", "princeton.edu", "yale.edu", "berkeley.edu", "columbia.edu"},
		OrgDomains:    []string{"nih.gov", "nsf.gov", "energy.gov", "usgs.gov", "noaa.gov", "cdc.gov"},
		Lexicon:       DefaultLexicon(),
		FallbackField: DefaultFallbackField,
	}
}

// DefaultLexicon returns the built-in field lexicon in priority order.
func DefaultLexicon() Lexicon {
	return Lexicon{
		{Label: "فيزياء", Keywords: []string{"physics", "quantum", "relativity", "mechanics", "thermodynamics", "electromagnetic"}},
		{Label: "كيمياء", Keywords: []string{"chemistry", "chemical", "molecule", "compound", "reaction", "periodic table"}},
		{Label: "رياضيات", Keywords: []string{"mathematics", "algebra", "calculus", "geometry", "statistics", "theorem"}},
		{Label: "أحياء", Keywords: []string{"biology", "DNA", "cell", "anatomy", "genetics", "evolution"}},
		{Label: "تاريخ", Keywords: []string{"history", "ancient", "civilization", "war", "empire", "dynasty"}},
		{Label: "فلك", Keywords: []string{"astronomy", "planet", "star", "galaxy", "universe", "cosmology"}},
		{Label: "علوم الأرض", Keywords: []string{"geology", "earth science", "climate", "weather", "ocean", "atmosphere"}},
		{Label: "حاسوب", Keywords: []string{"computer science", "algorithm", "programming", "software", "artificial intelligence"}},
		{Label: "تغذية", Keywords: []string{"nutrition", "diet", "vitamin", "mineral", "food science"}},
		{Label: "بيئة", Keywords: []string{"environment", "ecology", "conservation", "sustainability", "pollution"}},
	}
}

func defaultSources() []Source {
	return []Source{
		{
			Domain: "britannica.com",
			SeedURLs: []string{
				"https://www.britannica.com/science/physics",
				"https://www.britannica.com/science/chemistry",
				"https://www.britannica.com/science/mathematics",
				"https://www.britannica.com/science/biology",
				"https://www.britannica.com/topic/history",
				"https://www.britannica.com/science/astronomy",
				"https://www.britannica.com/science/geology",
				"https://www.britannica.com/technology/computer-science",
			},
			Selectors: Selectors{Title: "h1.md-title", Content: ".md-article-container"},
			FieldMapping: map[string]string{
				"physics":          "فيزياء",
				"chemistry":        "كيمياء",
				"mathematics":      "رياضيات",
				"biology":          "أحياء",
				"history":          "تاريخ",
				"astronomy":        "فلك",
				"geology":          "علوم الأرض",
				"computer-science": "حاسوب",
			},
		},
		{
			Domain: "nasa.gov",
			SeedURLs: []string{
				"https://www.nasa.gov/mission/",
				"https://www.nasa.gov/solar-system/",
				"https://www.nasa.gov/universe/",
				"https://science.nasa.gov/",
			},
			Selectors: Selectors{Title: "h1", Content: ".uswds-prose"},
			FieldMapping: map[string]string{
				"mission":      "فلك",
				"solar-system": "فلك",
				"universe":     "فلك",
				"science":      "علوم فضاء",
			},
		},
		{
			Domain: "science.org",
			SeedURLs: []string{
				"https://www.science.org/topic/article-type/research-article",
				"https://www.science.org/topic/physical-sciences",
				"https://www.science.org/topic/life-sciences",
				"https://www.science.org/topic/earth-environmental-sciences",
			},
			Selectors: Selectors{Title: "h1.page-title", Content: ".article__body"},
			FieldMapping: map[string]string{
				"physical-sciences":            "فيزياء",
				"life-sciences":                "أحياء",
				"earth-environmental-sciences": "علوم الأرض",
				"research-article":             "علوم عامة",
			},
		},
		{
			Domain: "nist.gov",
			SeedURLs: []string{
				"https://www.nist.gov/physics",
				"https://www.nist.gov/chemistry",
				"https://www.nist.gov/material-science",
			},
			Selectors: Selectors{Title: "h1", Content: ".field-item"},
			FieldMapping: map[string]string{
				"physics":          "فيزياء",
				"chemistry":        "كيمياء",
				"material-science": "علوم المواد",
			},
		},
	}
}
