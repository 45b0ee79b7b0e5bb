// Package services holds workflows that span more than one aggregate.
package services

import (
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/conductorhq/conductor/internal/billing"
	"github.com/conductorhq/conductor/internal/ids"
	"github.com/conductorhq/conductor/internal/models"
)

// Promotion converts accepted proposals into contracts.
type Promotion struct {
	DB  *gorm.DB
	Log *zap.Logger
}

func NewPromotion(db *gorm.DB, log *zap.Logger) *Promotion {
	return &Promotion{DB: db, Log: log}
}

// PromoteInput carries the signing details recorded at acceptance time.
type PromoteInput struct {
	SignedAt *time.Time `json:"signed_at,omitempty"`
	FilePath string     `json:"file_path,omitempty"`
	Notes    string     `json:"notes,omitempty"`
}

// Promote deep-copies the proposal's tasks into a new contract, marks the
// proposal accepted and moves the project to contract status, all in one
// transaction. The contract's tasks are copies, not references: later edits
// to either side never bleed into the other.
func (p *Promotion) Promote(proposalID string, in PromoteInput) (*models.Contract, error) {
	var proposal models.Proposal
	err := p.DB.Preload("Tasks", func(db *gorm.DB) *gorm.DB {
		return db.Order("sort_order")
	}).First(&proposal, "id = ?", proposalID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, billing.NotFound("proposal")
		}
		return nil, err
	}
	if len(proposal.Tasks) == 0 {
		return nil, billing.Precondition("proposal has no tasks to promote")
	}

	var contract *models.Contract
	err = p.DB.Transaction(func(tx *gorm.DB) error {
		total := 0.0
		c := models.Contract{
			ID:        ids.New("con-"),
			ProjectID: proposal.ProjectID,
			SignedAt:  in.SignedAt,
			FilePath:  in.FilePath,
			Notes:     in.Notes,
		}
		if err := tx.Create(&c).Error; err != nil {
			return err
		}
		tasks := make([]models.ContractTask, 0, len(proposal.Tasks))
		for i, pt := range proposal.Tasks {
			total += pt.Amount
			tasks = append(tasks, models.ContractTask{
				ID:          ids.New("ct-"),
				ContractID:  c.ID,
				SortOrder:   i + 1,
				Name:        pt.Name,
				Description: pt.Description,
				Amount:      pt.Amount,
			})
		}
		if err := tx.Create(&tasks).Error; err != nil {
			return err
		}
		c.TotalAmount = total
		if err := tx.Model(&models.Contract{}).Where("id = ?", c.ID).
			Update("total_amount", total).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Proposal{}).Where("id = ?", proposal.ID).
			Update("status", models.ProposalStatusAccepted).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Project{}).Where("id = ?", proposal.ProjectID).
			Update("status", models.ProjectStatusContract).Error; err != nil {
			return err
		}
		c.Tasks = tasks
		contract = &c
		return nil
	})
	if err != nil {
		return nil, err
	}
	p.Log.Info("promoted proposal to contract",
		zap.String("proposal_id", proposal.ID),
		zap.String("contract_id", contract.ID),
		zap.Float64("total_amount", contract.TotalAmount))
	return contract, nil
}
