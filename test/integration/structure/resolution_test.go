// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Partyline Contributors

//go:build integration

package structure_test

import (
	"fmt"
	"sync"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/partyline/partyline/internal/gateway/structure"
	"github.com/partyline/partyline/internal/models"
)

const (
	partyID models.PartyID = 5000
	roomID  models.RoomID  = 5100
	ownerID models.UserID  = 1
	userID  models.UserID  = 2

	crewRole models.RoleID = 5001
)

var baseRoleID = models.RoleID(partyID)

// ready builds the snapshot a freshly identified connection receives:
// one party, one room with a deny overwrite on the base role and an
// allow overwrite on the crew role.
func ready() *models.ReadyPayload {
	return &models.ReadyPayload{
		UserID: userID,
		Parties: []models.ReadyParty{{
			ID:      partyID,
			OwnerID: ownerID,
			Roles: []models.Role{
				{ID: baseRoleID, PartyID: partyID,
					Permissions: models.RoomPerms(models.PermViewRoom | models.PermSendMessages)},
				{ID: crewRole, PartyID: partyID, Position: 3,
					Permissions: models.RoomPerms(models.PermAttachFiles)},
			},
			Me: models.Member{PartyID: partyID, UserID: userID, Roles: []models.RoleID{crewRole}},
		}},
		Rooms: []models.ReadyRoom{{
			ID:      roomID,
			PartyID: partyID,
			Overwrites: models.Overwrites{
				{TargetID: models.Snowflake(baseRoleID), Deny: models.RoomPerms(models.PermSendMessages)},
				{TargetID: models.Snowflake(crewRole), Allow: models.RoomPerms(models.PermEmbedLinks)},
			},
		}},
	}
}

var _ = Describe("Permission resolution over the structural cache", func() {
	var cache *structure.Cache

	BeforeEach(func() {
		cache = structure.NewCache()
		cache.PopulateFromReady(ready())
	})

	Describe("snapshot population", func() {
		It("resolves the member through base role, held roles, and overwrites", func() {
			perms, cached := cache.ResolvePermissions(userID, roomID)
			Expect(cached).To(BeTrue())

			Expect(perms.Contains(models.RoomPerms(models.PermViewRoom))).To(BeTrue())
			Expect(perms.Contains(models.RoomPerms(models.PermAttachFiles))).To(BeTrue(), "held role contributes")
			Expect(perms.Contains(models.RoomPerms(models.PermEmbedLinks))).To(BeTrue(), "role overwrite allows")
			Expect(perms.Contains(models.RoomPerms(models.PermSendMessages))).To(BeFalse(), "base overwrite denies")
		})

		It("grants the owner everything without consulting overwrites", func() {
			perms, cached := cache.ResolvePermissions(ownerID, roomID)
			Expect(cached).To(BeTrue())
			Expect(perms).To(Equal(models.AllPermissions))
		})

		It("resolves a non-member to nothing, but authoritatively", func() {
			perms, cached := cache.ResolvePermissions(99, roomID)
			Expect(cached).To(BeTrue(), "membership absence is known, not a cache miss")
			Expect(perms.IsEmpty()).To(BeTrue())
		})

		It("reports an unknown room as uncached", func() {
			_, cached := cache.ResolvePermissions(userID, 404)
			Expect(cached).To(BeFalse())
		})

		It("is idempotent under snapshot replay", func() {
			before, _ := cache.ResolvePermissions(userID, roomID)

			cache.PopulateFromReady(ready())
			after, cached := cache.ResolvePermissions(userID, roomID)

			Expect(cached).To(BeTrue())
			Expect(after).To(Equal(before))
		})
	})

	Describe("incremental event folds", func() {
		It("reflects a role permission update immediately", func() {
			Expect(cache.SetRole(&models.Role{
				ID: crewRole, PartyID: partyID, Position: 3,
				Permissions: models.RoomPerms(models.PermAttachFiles | models.PermManageMessages),
			})).To(Succeed())

			perms, _ := cache.ResolvePermissions(userID, roomID)
			Expect(perms.Contains(models.RoomPerms(models.PermManageMessages))).To(BeTrue())
		})

		It("escalates to everything when a held role turns administrator", func() {
			Expect(cache.SetRole(&models.Role{
				ID: crewRole, PartyID: partyID, Position: 3,
				Permissions: models.PartyPerms(models.PermAdministrator),
			})).To(Succeed())

			perms, _ := cache.ResolvePermissions(userID, roomID)
			Expect(perms).To(Equal(models.AllPermissions))
		})

		It("tolerates a held role deleted out from under the member", func() {
			cache.RemoveRole(partyID, crewRole)

			perms, cached := cache.ResolvePermissions(userID, roomID)
			Expect(cached).To(BeTrue())
			Expect(perms.Contains(models.RoomPerms(models.PermViewRoom))).To(BeTrue(), "base role still applies")
			Expect(perms.Contains(models.RoomPerms(models.PermAttachFiles))).To(BeFalse())
		})

		It("drops a removed member to non-member resolution", func() {
			cache.RemoveMember(partyID, userID)

			perms, cached := cache.ResolvePermissions(userID, roomID)
			Expect(cached).To(BeTrue())
			Expect(perms.IsEmpty()).To(BeTrue())
		})

		It("uncaches every room when the party goes away", func() {
			cache.RemoveParty(partyID)

			_, cached := cache.ResolvePermissions(userID, roomID)
			Expect(cached).To(BeFalse())
		})

		It("rejects structure for a party it has never seen", func() {
			err := cache.SetRole(&models.Role{ID: 7001, PartyID: 7000})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("concurrent resolution and mutation", func() {
		It("stays consistent while roles churn under readers", func() {
			const readers = 8
			const writes = 200

			var wg sync.WaitGroup
			stop := make(chan struct{})

			for range readers {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for {
						select {
						case <-stop:
							return
						default:
						}
						perms, cached := cache.ResolvePermissions(userID, roomID)
						if cached {
							// View comes from the base role and is never
							// touched by the writer.
							Expect(perms.Contains(models.RoomPerms(models.PermViewRoom))).To(BeTrue())
						}
					}
				}()
			}

			for i := range writes {
				err := cache.SetRole(&models.Role{
					ID: crewRole, PartyID: partyID, Position: 3,
					Permissions: models.RoomPerms(models.PermAttachFiles | uint64(i%2)<<9),
				})
				Expect(err).NotTo(HaveOccurred())
			}
			close(stop)
			wg.Wait()
		})

		It("handles many members resolving across many rooms", func() {
			for i := range 50 {
				member := &models.Member{PartyID: partyID, UserID: models.UserID(1000 + i)}
				Expect(cache.SetMember(member)).To(Succeed())
			}
			for i := range 10 {
				room := &models.ReadyRoom{ID: models.RoomID(6000 + i), PartyID: partyID}
				Expect(cache.SetRoom(room)).To(Succeed())
			}

			var wg sync.WaitGroup
			for i := range 50 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for j := range 10 {
						perms, cached := cache.ResolvePermissions(models.UserID(1000+i), models.RoomID(6000+j))
						Expect(cached).To(BeTrue(), fmt.Sprintf("member %d room %d", i, j))
						Expect(perms.Contains(models.RoomPerms(models.PermViewRoom))).To(BeTrue())
					}
				}()
			}
			wg.Wait()
		})
	})
})
