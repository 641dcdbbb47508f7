package models

// Department groups trades and is chaired by one trainer.
type Department struct {
	ID             int64  `db:"id" json:"id"`
	Name           string `db:"name" json:"nom_departement"`
	BuildingID     *int64 `db:"building_id" json:"batiment_id,omitempty"`
	ChiefTrainerID *int64 `db:"trainer_id" json:"formateur_id,omitempty"`
}

// Trainer is the teaching profile attached 1:1 to a user.
type Trainer struct {
	ID          int64  `db:"id" json:"id"`
	UserID      int64  `db:"user_id" json:"user_id"`
	SpecialtyID *int64 `db:"specialty_id" json:"specialite_id,omitempty"`
	LastName    string `db:"last_name" json:"nom"`
	FirstName   string `db:"first_name" json:"prenom"`
}

// FullName returns "last first".
func (t Trainer) FullName() string {
	return joinName(t.LastName, t.FirstName)
}

// Trade (métier) belongs to a department and a level.
type Trade struct {
	ID           int64  `db:"id" json:"id"`
	Title        string `db:"title" json:"intitule"`
	Duration     string `db:"duration" json:"duree"`
	LevelID      *int64 `db:"level_id" json:"niveau_id,omitempty"`
	DepartmentID int64  `db:"department_id" json:"departement_id"`
}

// Competency is a quota-bounded teaching unit of a trade.
type Competency struct {
	ID               int64   `db:"id" json:"id"`
	Name             string  `db:"name" json:"nom"`
	Code             string  `db:"code" json:"code"`
	CompetencyNumber string  `db:"competency_number" json:"numero_competence"`
	HourlyQuota      float64 `db:"hourly_quota" json:"quota_horaire"`
	TradeID          int64   `db:"trade_id" json:"metier_id"`
	TrainerID        *int64  `db:"trainer_id" json:"formateur_id,omitempty"`
	RoomID           *int64  `db:"room_id" json:"salle_id,omitempty"`
}

// CompetencyDetail is a competency joined with its trade, department, trainer
// and room in a single batched lookup.
type CompetencyDetail struct {
	Competency
	TradeTitle       string `db:"trade_title" json:"metier"`
	DepartmentID     int64  `db:"department_id" json:"departement_id"`
	TrainerLastName  string `db:"trainer_last_name" json:"-"`
	TrainerFirstName string `db:"trainer_first_name" json:"-"`
	RoomName         string `db:"room_name" json:"salle,omitempty"`
}

// TrainerName returns the trainer display name, empty when unassigned.
func (d CompetencyDetail) TrainerName() string {
	return joinName(d.TrainerLastName, d.TrainerFirstName)
}

// TrainingYear (année) is the cohort a session is delivered to.
type TrainingYear struct {
	ID           int64  `db:"id" json:"id"`
	Title        string `db:"title" json:"intitule"`
	Year         string `db:"year" json:"annee"`
	DepartmentID *int64 `db:"department_id" json:"departement_id,omitempty"`
}

// Room belongs to a building.
type Room struct {
	ID         int64  `db:"id" json:"id"`
	Name       string `db:"name" json:"intitule"`
	Capacity   int    `db:"capacity" json:"capacite"`
	BuildingID int64  `db:"building_id" json:"batiment_id"`
}
