package gateway

// Response shapes for each gateway endpoint. Every response is decoded into
// one of these at the boundary; nothing downstream touches loose JSON.

// Session is the token pair representing an authenticated browser.
type Session struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in,omitempty"`
	ExpiresAt    int64  `json:"expires_at,omitempty"` // unix seconds
	TokenType    string `json:"token_type,omitempty"`
}

type User struct {
	ID               string         `json:"id"`
	Email            string         `json:"email,omitempty"`
	EmailVerified    bool           `json:"email_verified"`
	EmailConfirmedAt string         `json:"email_confirmed_at,omitempty"`
	CreatedAt        string         `json:"created_at,omitempty"`
	UpdatedAt        string         `json:"updated_at,omitempty"`
	AppMetadata      map[string]any `json:"app_metadata,omitempty"`
	UserMetadata     map[string]any `json:"user_metadata,omitempty"`
}

type Profile struct {
	ID                  string `json:"id"`
	FullName            string `json:"full_name,omitempty"`
	AvatarURL           string `json:"avatar_url,omitempty"`
	Bio                 string `json:"bio,omitempty"`
	Location            string `json:"location,omitempty"`
	LinkedinURL         string `json:"linkedin_url,omitempty"`
	GithubURL           string `json:"github_url,omitempty"`
	WebsiteURL          string `json:"website_url,omitempty"`
	OnboardingCompleted bool   `json:"onboarding_completed"`
	CreatedAt           string `json:"created_at,omitempty"`
	UpdatedAt           string `json:"updated_at,omitempty"`
}

// ProfileUpdate carries the mutable profile fields; nil pointers are omitted
// so partial updates do not clobber existing values.
type ProfileUpdate struct {
	FullName            *string `json:"full_name,omitempty"`
	AvatarURL           *string `json:"avatar_url,omitempty"`
	Bio                 *string `json:"bio,omitempty"`
	Location            *string `json:"location,omitempty"`
	LinkedinURL         *string `json:"linkedin_url,omitempty"`
	GithubURL           *string `json:"github_url,omitempty"`
	WebsiteURL          *string `json:"website_url,omitempty"`
	OnboardingCompleted *bool   `json:"onboarding_completed,omitempty"`
}

// AuthResponse is the shape shared by sign-in, sign-up, refresh, and the
// OAuth code exchange. Session may be nil for sign-up flows that require
// email verification before issuing tokens.
type AuthResponse struct {
	Session *Session `json:"session"`
	User    *User    `json:"user"`
}

type sessionLookupResponse struct {
	User *User `json:"user"`
}

type oauthURLResponse struct {
	URL string `json:"url"`
}

type verificationResponse struct {
	EmailVerified bool `json:"email_verified"`
}

// Question is one diagnostic question as served by the gateway.
type Question struct {
	QuestionID   string `json:"question_id"`
	QuestionText string `json:"question_text"`
	Category     string `json:"category"`
	Order        int    `json:"order"`
}

// StartDiagnosticResponse describes a new or resumed diagnostic session.
type StartDiagnosticResponse struct {
	SessionID         string            `json:"session_id"`
	Status            string            `json:"status"`
	Questions         []Question        `json:"questions"`
	ExistingResponses map[string]string `json:"existing_responses,omitempty"`
	FollowupQuestions []Question        `json:"followup_questions,omitempty"`
	IsComplete        bool              `json:"is_complete,omitempty"`
	ReadyToComplete   bool              `json:"ready_to_complete,omitempty"`
}

// SubmitResponsesResponse is the gateway's verdict on a batch of answers.
type SubmitResponsesResponse struct {
	Success            bool       `json:"success"`
	Status             string     `json:"status"`
	CompleteItems      []string   `json:"complete_items,omitempty"`
	MissingItems       []string   `json:"missing_items,omitempty"`
	NeedsClarification []string   `json:"needs_clarification,omitempty"`
	FollowupQuestions  []Question `json:"followup_questions,omitempty"`
}

type CompleteDiagnosticResponse struct {
	Success           bool   `json:"success"`
	SessionID         string `json:"session_id"`
	DiagnosticID      string `json:"diagnostic_id"`
	ChecklistComplete bool   `json:"checklist_complete"`
}

type GenerateRoadmapResponse struct {
	Status    string `json:"status"`
	RoadmapID string `json:"roadmap_id"`
	Message   string `json:"message,omitempty"`
}

type Milestone struct {
	MilestoneIndex  int      `json:"milestone_index"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	SkillArea       string   `json:"skill_area,omitempty"`
	Tasks           []string `json:"tasks,omitempty"`
	EstimatedWeeks  int      `json:"estimated_weeks"`
	Resources       []string `json:"resources,omitempty"`
	SuccessCriteria []string `json:"success_criteria,omitempty"`
	Status          string   `json:"status,omitempty"`
}

type Roadmap struct {
	ID                  string      `json:"id"`
	UserID              string      `json:"user_id"`
	DiagnosticSessionID string      `json:"diagnostic_session_id,omitempty"`
	TargetCompany       string      `json:"target_company,omitempty"`
	TargetRole          string      `json:"target_role,omitempty"`
	Title               string      `json:"title"`
	Description         string      `json:"description,omitempty"`
	Milestones          []Milestone `json:"milestones"`
	Status              string      `json:"status,omitempty"`
	CreatedAt           string      `json:"created_at,omitempty"`
	UpdatedAt           string      `json:"updated_at,omitempty"`
}

type RoadmapList struct {
	Roadmaps []Roadmap `json:"roadmaps"`
}

// ContactMessage is the unauthenticated contact-form payload.
type ContactMessage struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}
