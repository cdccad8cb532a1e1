package voices

import (
	"fmt"
	"strings"
)

// VoiceName is a prebuilt voice of the speech model.
type VoiceName string

const (
	Zephyr VoiceName = "Zephyr"
	Kore   VoiceName = "Kore"
	Puck   VoiceName = "Puck"
	Charon VoiceName = "Charon"
	Fenrir VoiceName = "Fenrir"
)

// Names lists every voice the model accepts.
var Names = []VoiceName{Zephyr, Kore, Puck, Charon, Fenrir}

// ValidVoice reports whether name is one of the prebuilt voices.
func ValidVoice(name string) bool {
	for _, v := range Names {
		if string(v) == name {
			return true
		}
	}
	return false
}

// Persona is a presentable voice character. Several personas share one
// underlying voice and differ only in how they are described.
type Persona struct {
	Key         string    `json:"key"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Gender      string    `json:"gender"`
	Style       string    `json:"style"`
	Voice       VoiceName `json:"voice"`
}

// FirstName is the Arabic given name, without the Latin transliteration.
func (p Persona) FirstName() string {
	name, _, _ := strings.Cut(p.Name, " ")
	return name
}

// PreviewText is the greeting spoken when a persona is auditioned.
func (p Persona) PreviewText() string {
	return fmt.Sprintf("أهلاً بك، أنا %s. أقدم لك تجربة صوتية فريدة.", p.FirstName())
}

var catalog = []Persona{
	{
		Key:         "shahine",
		Name:        "شاهين (Shahine)",
		Description: "صوت رخيم وفخم، يجسد الوقار والاحترافية. مثالي للتعليق الوثائقي والنشرات الإخبارية الكبرى.",
		Gender:      "male",
		Style:       "رخيم / إخباري فخم",
		Voice:       Charon,
	},
	{
		Key:         "dana",
		Name:        "دانة (Dana)",
		Description: "نبرة هادئة، رقيقة وواضحة جداً. خيارك الأول للروايات الأدبية والكتب الصوتية الملهمة.",
		Gender:      "female",
		Style:       "هادئ / روائي ناعم",
		Voice:       Zephyr,
	},
	{
		Key:         "jasser",
		Name:        "جاسر (Jasser)",
		Description: "صوت شبابي قوي، حاد ومؤثر. يعطي طابع القوة والجدية للمشاريع التعليمية والتقنية.",
		Gender:      "male",
		Style:       "قوي / تعليمي جاد",
		Voice:       Fenrir,
	},
	{
		Key:         "layan",
		Name:        "ليان (Layan)",
		Description: "صوت دافئ ومقنع، يتميز بنبرة تسويقية جذابة. مثالي للإعلانات والبودكاست الحواري.",
		Gender:      "female",
		Style:       "دافئ / تسويقي جذاب",
		Voice:       Kore,
	},
	{
		Key:         "majed",
		Name:        "ماجد (Majed)",
		Description: "نبرة شبابية حيوية، مليئة بالحماس والود. مناسب جداً للمحتوى الترفيهي ووسائل التواصل الاجتماعي.",
		Gender:      "male",
		Style:       "حيوي / شبابي مرح",
		Voice:       Puck,
	},
	{
		Key:         "sultan",
		Name:        "سلطان (Sultan)",
		Description: "أداء ملكي واثق، يتميز بنبرة عميقة وسلطوية. مثالي للخطابات الرسمية والتعليق الصوتي الفاخر.",
		Gender:      "male",
		Style:       "سلطوي / فخم جداً",
		Voice:       Charon,
	},
	{
		Key:         "nadia",
		Name:        "نادية (Nadia)",
		Description: "صوت إذاعي مشرق ومتحمس. يتميز بمخارج حروف دقيقة جداً تجعله مثالياً للإعلانات الإذاعية السريعة.",
		Gender:      "female",
		Style:       "متحمس / إذاعي",
		Voice:       Zephyr,
	},
	{
		Key:         "faisal",
		Name:        "فيصل (Faisal)",
		Description: "نبرة احترافية هادئة تمزج بين الثقة واللطف. خيار مثالي لأنظمة الرد الآلي المتقدمة والعروض التقديمية.",
		Gender:      "male",
		Style:       "متزن / احترافي",
		Voice:       Fenrir,
	},
	{
		Key:         "salma",
		Name:        "سلمى (Salma)",
		Description: "صوت تعليمي ناعم وصبور، يوفر تجربة استماع مريحة جداً للشروحات الطويلة والمنصات التعليمية.",
		Gender:      "female",
		Style:       "تعليمي / ناعم",
		Voice:       Kore,
	},
}

// keySet for quick lookup
var keySet = func() map[string]Persona {
	m := make(map[string]Persona, len(catalog))
	for _, p := range catalog {
		m[p.Key] = p
	}
	return m
}()

// All returns a copy of the catalog in display order.
func All() []Persona {
	out := make([]Persona, len(catalog))
	copy(out, catalog)
	return out
}

// Default is the persona selected when the caller names none.
func Default() Persona {
	return catalog[0]
}

// Lookup finds a persona by key.
func Lookup(key string) (Persona, bool) {
	p, ok := keySet[strings.ToLower(strings.TrimSpace(key))]
	return p, ok
}
