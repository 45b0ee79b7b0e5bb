package billing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gorm.io/gorm"

	"github.com/conductorhq/conductor/internal/models"
)

func markSent(t *testing.T, db *gorm.DB, invoiceID string) {
	t.Helper()
	require.NoError(t, db.Model(&models.Invoice{}).Where("id = ?", invoiceID).
		Update("sent_status", models.SentStatusSent).Error)
}

func TestCreateNextRequiresSent(t *testing.T) {
	db := setupLedgerDB(t)
	_, contract, tasks := seedContract(t, db)
	l := newTestLedger(db)

	inv, err := l.CreateFromContract(contract.ID, FromContractInput{
		Tasks: []TaskPercent{{TaskID: tasks[0].ID, Percent: 50}},
	})
	require.NoError(t, err)

	_, err = l.CreateNext(inv.ID)
	require.ErrorIs(t, err, ErrPrecondition)

	// the failed attempt must not leave a draft behind
	var count int64
	db.Model(&models.Invoice{}).Count(&count)
	assert.Equal(t, int64(1), count)
}

func TestCreateNextCarriesForward(t *testing.T) {
	db := setupLedgerDB(t)
	project, contract, tasks := seedContract(t, db)
	l := newTestLedger(db)

	inv1, err := l.CreateFromContract(contract.ID, FromContractInput{
		Tasks: []TaskPercent{
			{TaskID: tasks[0].ID, Percent: 100},
			{TaskID: tasks[1].ID, Percent: 100},
		},
	})
	require.NoError(t, err)
	markSent(t, db, inv1.ID)

	inv2, err := l.CreateNext(inv1.ID)
	require.NoError(t, err)
	assert.Equal(t, "MC25-2", inv2.InvoiceNumber)
	require.NotNil(t, inv2.PreviousInvoiceID)
	assert.Equal(t, inv1.ID, *inv2.PreviousInvoiceID)
	assert.InDelta(t, 0, inv2.TotalDue, 0.001)

	require.Len(t, inv2.LineItems, 2)
	for i, li := range inv2.LineItems {
		old := inv1.LineItems[i]
		assert.Equal(t, old.Name, li.Name)
		assert.Equal(t, old.ContractTaskID, li.ContractTaskID)
		assert.InDelta(t, old.UnitPrice, li.UnitPrice, 0.001)
		assert.InDelta(t, 0, li.Quantity, 0.001)
		assert.InDelta(t, 0, li.Amount, 0.001)
		assert.InDelta(t, old.PreviousBilling+old.Amount, li.PreviousBilling, 0.001)
	}

	var reloaded models.Project
	require.NoError(t, db.First(&reloaded, "id = ?", project.ID).Error)
	require.NotNil(t, reloaded.CurrentInvoiceID)
	assert.Equal(t, inv2.ID, *reloaded.CurrentInvoiceID)
}

func TestCreateNextRequiresLineItems(t *testing.T) {
	db := setupLedgerDB(t)
	project, _, _ := seedContract(t, db)
	l := newTestLedger(db)

	inv, err := l.CreateStandalone(project.ID, "", "", "expenses", 50)
	require.NoError(t, err)
	markSent(t, db, inv.ID)

	_, err = l.CreateNext(inv.ID)
	assert.ErrorIs(t, err, ErrPrecondition)
}

func TestChainWalkTerminates(t *testing.T) {
	db := setupLedgerDB(t)
	_, contract, tasks := seedContract(t, db)
	l := newTestLedger(db)

	inv1, err := l.CreateFromContract(contract.ID, FromContractInput{
		Tasks: []TaskPercent{{TaskID: tasks[0].ID, Percent: 50}},
	})
	require.NoError(t, err)
	markSent(t, db, inv1.ID)
	inv2, err := l.CreateNext(inv1.ID)
	require.NoError(t, err)
	markSent(t, db, inv2.ID)
	inv3, err := l.CreateNext(inv2.ID)
	require.NoError(t, err)

	chain, err := l.Chain(inv3.ID)
	require.NoError(t, err)
	require.Len(t, chain, 3)
	assert.Equal(t, inv3.ID, chain[0].ID)
	assert.Equal(t, inv2.ID, chain[1].ID)
	assert.Equal(t, inv1.ID, chain[2].ID)
}

func TestChainIncludesSoftDeletedLinks(t *testing.T) {
	db := setupLedgerDB(t)
	_, contract, tasks := seedContract(t, db)
	l := newTestLedger(db)

	inv1, err := l.CreateFromContract(contract.ID, FromContractInput{
		Tasks: []TaskPercent{{TaskID: tasks[0].ID, Percent: 50}},
	})
	require.NoError(t, err)
	markSent(t, db, inv1.ID)
	inv2, err := l.CreateNext(inv1.ID)
	require.NoError(t, err)

	// deleting the middle of the chain must not break the walk
	require.NoError(t, db.Delete(&models.Invoice{}, "id = ?", inv1.ID).Error)

	chain, err := l.Chain(inv2.ID)
	require.NoError(t, err)
	assert.Len(t, chain, 2)
}

func TestChainRejectsCycle(t *testing.T) {
	db := setupLedgerDB(t)
	_, contract, tasks := seedContract(t, db)
	l := newTestLedger(db)

	inv1, err := l.CreateFromContract(contract.ID, FromContractInput{
		Tasks: []TaskPercent{{TaskID: tasks[0].ID, Percent: 50}},
	})
	require.NoError(t, err)
	markSent(t, db, inv1.ID)
	inv2, err := l.CreateNext(inv1.ID)
	require.NoError(t, err)

	// forge a back-link so the chain loops
	require.NoError(t, db.Model(&models.Invoice{}).Where("id = ?", inv1.ID).
		Update("previous_invoice_id", inv2.ID).Error)

	_, err = l.Chain(inv2.ID)
	require.ErrorIs(t, err, ErrPrecondition)
}

func TestChainRejectsCrossContractLink(t *testing.T) {
	db := setupLedgerDB(t)
	project, contract, tasks := seedContract(t, db)
	l := newTestLedger(db)

	inv1, err := l.CreateFromContract(contract.ID, FromContractInput{
		Tasks: []TaskPercent{{TaskID: tasks[0].ID, Percent: 50}},
	})
	require.NoError(t, err)
	markSent(t, db, inv1.ID)
	inv2, err := l.CreateNext(inv1.ID)
	require.NoError(t, err)

	other := models.Contract{ID: "con-other", ProjectID: project.ID, TotalAmount: 500}
	require.NoError(t, db.Create(&other).Error)
	require.NoError(t, db.Model(&models.Invoice{}).Where("id = ?", inv2.ID).
		Update("contract_id", other.ID).Error)

	_, err = l.Chain(inv2.ID)
	require.ErrorIs(t, err, ErrPrecondition)
}
