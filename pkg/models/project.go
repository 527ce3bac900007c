package models

// GeneralPath is the conventional path name whose documents live at the
// project scope instead of under paths/.
const GeneralPath = "general"

// ProjectConfig is the per-project configuration document (config.json).
type ProjectConfig struct {
	ID            string   `json:"id"`
	Goal          string   `json:"goal"`
	LearningStyle string   `json:"learningStyle,omitempty"`
	FocusAreas    []string `json:"focusAreas,omitempty"`
	ActivePath    string   `json:"activePath,omitempty"`
	CreatedAt     string   `json:"createdAt,omitempty"`
}

// ActiveState is the data-directory-level state document holding the
// currently active project pointer ({dataDir}/config.json).
type ActiveState struct {
	ActiveProject string `json:"activeProject,omitempty"`
}
