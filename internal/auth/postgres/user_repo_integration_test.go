// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

//go:build integration

package postgres_test

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/gatekeep/gatekeep/internal/auth"
	"github.com/gatekeep/gatekeep/internal/auth/postgres"
)

var _ = Describe("UserRepository", func() {
	var (
		ctx  context.Context
		repo *postgres.UserRepository
	)

	BeforeEach(func() {
		ctx = context.Background()
		repo = postgres.NewUserRepository(testPool)
		_, err := testPool.Exec(ctx, `DELETE FROM users`)
		Expect(err).NotTo(HaveOccurred())
	})

	newUser := func(email string) *auth.User {
		now := time.Now().UTC().Truncate(time.Microsecond)
		return &auth.User{
			Name:         "Alice",
			Email:        email,
			PasswordHash: "$2a$10$hash",
			CreatedAt:    now,
			UpdatedAt:    now,
		}
	}

	It("round-trips a created user", func() {
		user := newUser("alice@example.com")
		Expect(repo.Create(ctx, user)).To(Succeed())
		Expect(user.ID.IsZero()).To(BeFalse())

		stored, err := repo.GetByEmail(ctx, "alice@example.com")
		Expect(err).NotTo(HaveOccurred())
		Expect(stored.ID).To(Equal(user.ID))
		Expect(stored.Name).To(Equal("Alice"))
		Expect(stored.PasswordHash).To(Equal("$2a$10$hash"))
		Expect(stored.IsActive).To(BeFalse())
		Expect(stored.CreatedAt.Equal(user.CreatedAt)).To(BeTrue())
	})

	It("matches email exactly", func() {
		Expect(repo.Create(ctx, newUser("alice@example.com"))).To(Succeed())

		_, err := repo.GetByEmail(ctx, "ALICE@example.com")
		Expect(err).To(MatchError(auth.ErrNotFound))
	})

	It("rejects a second record with the same email", func() {
		Expect(repo.Create(ctx, newUser("alice@example.com"))).To(Succeed())

		err := repo.Create(ctx, newUser("alice@example.com"))
		Expect(err).To(MatchError(auth.ErrDuplicateIdentity))
	})

	It("admits exactly one of many concurrent inserts", func() {
		var created atomic.Int32
		var wg sync.WaitGroup
		for range 10 {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				if err := repo.Create(ctx, newUser("race@example.com")); err == nil {
					created.Add(1)
				} else {
					Expect(err).To(MatchError(auth.ErrDuplicateIdentity))
				}
			}()
		}
		wg.Wait()

		Expect(created.Load()).To(Equal(int32(1)))
	})
})
