// Package model はドメインモデルを定義する。
package model

import "time"

// FormationStatus は研修のライフサイクル状態を表す。
//
//	EnAttente --approve--> Approuvee --start--> EnCours --finish--> Terminee
//	EnAttente --reject--> Rejetee
//
// Rejetee と Terminee は終端状態。Terminee からはレビュー追加のみ可能で、
// 状態自体は変化しない。
type FormationStatus string

const (
	// StatusEnAttente は管理者の承認待ち状態。
	StatusEnAttente FormationStatus = "en_attente"
	// StatusApprouvee は承認済みで受講登録を受け付ける状態。
	StatusApprouvee FormationStatus = "approuvee"
	// StatusRejetee は管理者に却下された終端状態。
	StatusRejetee FormationStatus = "rejetee"
	// StatusEnCours は開講中の状態。
	StatusEnCours FormationStatus = "en_cours"
	// StatusTerminee は終了した終端状態。レビューを受け付ける。
	StatusTerminee FormationStatus = "terminee"
)

// FormationCategory は研修のカテゴリを表す。
type FormationCategory string

const (
	CategoryDeveloppement FormationCategory = "developpement"
	CategoryDesign        FormationCategory = "design"
	CategoryMarketing     FormationCategory = "marketing"
	CategoryBusiness      FormationCategory = "business"
	CategoryLangues       FormationCategory = "langues"
	CategoryAutre         FormationCategory = "autre"
)

// Formation はexpertが公開する研修を表す。
// 参加者はformation_participantsテーブルで管理し、双方向参照は持たない。
// 参加者数は常に NombreMaxParticipants 以下に保たれる。
type Formation struct {
	ID                    string
	Titre                 string
	Description           string
	DateDebut             time.Time
	DateFin               time.Time
	Duree                 int // 時間数
	NombreMaxParticipants int
	Prix                  float64
	Categorie             FormationCategory
	ImageFormation        []byte
	// URLMeet は外部会議プロビジョナが発行する参加URL。
	// 発行に失敗した場合はnilのまま作成される（ベストエフォート）。
	URLMeet     *string
	Statut      FormationStatus
	FormateurID string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Avis は終了した研修に参加者が残すレビューを表す。
// (formation, user) の組につき高々1件。
type Avis struct {
	ID           string
	FormationID  string
	UserID       string
	Commentaire  string
	Note         int // 1〜5
	DateCreation time.Time
}
