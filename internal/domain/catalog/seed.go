package catalog

// Seed data. IDs are assigned by storage; SeedLevels/SeedSkills carry only
// the natural keys and texts that migrations insert.

// SeedLevels is the level ladder, lowest first.
var SeedLevels = []Level{
	{Code: LevelPreA1, Name: "Pre A1 - Principiante", Order: 0,
		Description: "Nivel inicial. Aprende palabras básicas, saludos y frases muy simples."},
	{Code: LevelA1, Name: "A1 - Elemental", Order: 1,
		Description: "Puede usar expresiones cotidianas y frases básicas para satisfacer necesidades concretas."},
	{Code: LevelA2, Name: "A2 - Pre-intermedio", Order: 2,
		Description: "Puede comunicarse en tareas simples y describir aspectos de su entorno."},
	{Code: LevelB1, Name: "B1 - Intermedio", Order: 3,
		Description: "Puede desenvolverse en situaciones de viaje y describir experiencias y eventos."},
	{Code: LevelB2, Name: "B2 - Intermedio Alto", Order: 4,
		Description: "Puede interactuar con fluidez con hablantes nativos sin esfuerzo."},
	{Code: LevelC1, Name: "C1 - Avanzado", Order: 5,
		Description: "Puede expresarse con fluidez y espontaneidad, uso flexible del idioma."},
}

// SeedSkills is the fixed skill set.
var SeedSkills = []Skill{
	{Code: SkillSpeaking, Name: "Speaking", Icon: "mic", Description: "Habilidad para comunicarse oralmente en inglés."},
	{Code: SkillListening, Name: "Listening", Icon: "headphones", Description: "Habilidad para comprender el inglés hablado."},
	{Code: SkillReading, Name: "Reading", Icon: "book-open", Description: "Habilidad para leer y comprender textos en inglés."},
	{Code: SkillWriting, Name: "Writing", Icon: "pencil", Description: "Habilidad para escribir en inglés."},
	{Code: SkillVocabulary, Name: "Vocabulary", Icon: "library", Description: "Conocimiento de palabras y expresiones en inglés."},
	{Code: SkillGrammar, Name: "Grammar", Icon: "brackets", Description: "Conocimiento de las reglas gramaticales del inglés."},
}

// VocabularyCategories are the beginner topic families.
var VocabularyCategories = []VocabularyCategory{
	{"GREETINGS", "Saludos"},
	{"NUMBERS", "Números"},
	{"COLORS", "Colores"},
	{"FAMILY", "Familia"},
	{"PRONOUNS", "Pronombres"},
	{"ACTIONS", "Verbos básicos"},
	{"FOOD", "Comida y bebida"},
	{"BODY", "Cuerpo humano"},
	{"CLOTHES", "Ropa"},
	{"HOUSE", "Casa"},
	{"TIME", "Tiempo"},
	{"PLACES", "Lugares"},
	{"ADJECTIVES", "Adjetivos"},
	{"QUESTIONS", "Preguntas"},
	{"ANIMALS", "Animales"},
}

// Default returns a catalog built from seed data with sequential IDs
// (levels 1..6, skills 1..6), matching a freshly migrated database.
func Default() *Catalog {
	levels := make([]Level, len(SeedLevels))
	for i, l := range SeedLevels {
		l.ID = int64(i + 1)
		levels[i] = l
	}
	skills := make([]Skill, len(SeedSkills))
	for i, s := range SeedSkills {
		s.ID = int64(i + 1)
		skills[i] = s
	}
	c, err := New(levels, skills)
	if err != nil {
		panic(err) // seed data is static
	}
	return c
}
