package coupons

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/require"
)

func newTestAdmin(remote *fakeRemote) *Admin {
	return NewAdmin(remote, WithAdminClock(func() time.Time { return refNow }))
}

func TestAdminListFiltersAndDerivesStatus(t *testing.T) {
	t.Parallel()

	admin := newTestAdmin(newFakeRemote(sampleCoupons()...))
	views, err := admin.List(context.Background(), Filter{Status: FilterExpired})
	require.NoError(t, err)
	require.Len(t, views, 2)
	require.Equal(t, "OLD", views[0].Code)
	require.Equal(t, StatusExpired, views[0].Status)
	require.Equal(t, StatusInactive, views[1].Status)
	require.Contains(t, views[0].DescriptionHTML, "gone")
}

func TestAdminCreateValidatesBeforeCallingRemote(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote()
	admin := newTestAdmin(remote)

	d := validDraft(t)
	d.DiscountValue = 120
	_, err := admin.Create(context.Background(), d)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	require.Equal(t, "Percentage discount cannot exceed 100%", verr.First())
	require.Empty(t, remote.calls)

	created, err := admin.Create(context.Background(), validDraft(t))
	require.NoError(t, err)
	require.Equal(t, "SUMMER2023", created.Code)
	require.NotZero(t, created.ID)
}

func TestAdminUpdateFailureLeavesRecordUntouched(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote(sampleCoupons()...)
	admin := newTestAdmin(remote)
	remote.failWith = errors.New("boom")

	d := DraftFrom(sampleCoupons()[0])
	d.Description = "changed"
	d.DiscountValue = 10
	_, err := admin.Update(context.Background(), 1, d)

	var opErr *OpError
	require.True(t, errors.As(err, &opErr))
	require.Equal(t, "Failed to save coupon. Please try again.", opErr.Message)
	require.ErrorIs(t, err, remote.failWith)

	remote.failWith = nil
	got, err := admin.Get(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, "Summer sale", got.Description)
}

func TestAdminDraftPrefillsForm(t *testing.T) {
	t.Parallel()

	admin := newTestAdmin(newFakeRemote(sampleCoupons()...))
	d, err := admin.Draft(context.Background(), 5)
	require.NoError(t, err)
	require.Equal(t, "WELCOME", d.Code)
	require.True(t, d.FirstTimeUserOnly)
	require.True(t, d.Active)

	_, err = admin.Draft(context.Background(), 99)
	var opErr *OpError
	require.True(t, errors.As(err, &opErr))
	require.Equal(t, "Failed to load coupon", opErr.Message)
}

func TestAdminToggleFlipsActive(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote(sampleCoupons()...)
	admin := newTestAdmin(remote)

	updated, err := admin.Toggle(context.Background(), 4)
	require.NoError(t, err)
	require.True(t, updated.Active)
	require.Equal(t, "PAUSED", updated.Code)

	updated, err = admin.Toggle(context.Background(), 4)
	require.NoError(t, err)
	require.False(t, updated.Active)
}

func TestAdminDeleteAndErrors(t *testing.T) {
	t.Parallel()

	remote := newFakeRemote(sampleCoupons()...)
	admin := newTestAdmin(remote)

	require.NoError(t, admin.Delete(context.Background(), 2))
	views, err := admin.List(context.Background(), Filter{})
	require.NoError(t, err)
	require.Len(t, views, 5)

	remote.failWith = errors.New("offline")
	err = admin.Delete(context.Background(), 1)
	var opErr *OpError
	require.True(t, errors.As(err, &opErr))
	require.Equal(t, "Failed to delete coupon", opErr.Message)

	_, err = admin.List(context.Background(), Filter{})
	require.True(t, errors.As(err, &opErr))
	require.Equal(t, "Failed to load coupons", opErr.Message)

	_, err = admin.Toggle(context.Background(), 1)
	require.True(t, errors.As(err, &opErr))
	require.Equal(t, "Failed to update coupon status", opErr.Message)
}

func TestAdminExpiringOnlyActive(t *testing.T) {
	t.Parallel()

	list := sampleCoupons()
	list[4].Active = false
	views, err := newTestAdmin(newFakeRemote(list...)).Expiring(context.Background(), 7*24*time.Hour)
	require.NoError(t, err)
	require.Empty(t, views)
}

func TestRenderDescriptionSanitizes(t *testing.T) {
	t.Parallel()

	out, err := RenderDescription("**Flat 10%** off, see [terms](https://pinakamakhana.com/terms)\n\n<script>alert(1)</script>\n\n[bad](javascript:alert(1))")
	require.NoError(t, err)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(out))
	require.NoError(t, err)
	require.Equal(t, "Flat 10%", doc.Find("strong").Text())
	require.Zero(t, doc.Find("script").Length())

	href, ok := doc.Find("a").First().Attr("href")
	require.True(t, ok)
	require.Equal(t, "https://pinakamakhana.com/terms", href)
	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		h, _ := s.Attr("href")
		require.NotContains(t, h, "javascript")
	})
}
