package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"mindtree/internal/auth"
	"mindtree/internal/config"
	"mindtree/internal/store"
)

func execute(args ...string) (string, error) {
	cmd := NewRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

var _ = Describe("Root command", func() {
	It("registers every subcommand", func() {
		cmd := NewRootCmd()
		names := []string{}
		for _, sub := range cmd.Commands() {
			names = append(names, sub.Name())
		}
		Expect(names).To(ContainElements("serve", "migrate", "tree", "orphans", "reconcile", "hash-token"))
	})

	It("has global flags", func() {
		cmd := NewRootCmd()
		Expect(cmd.PersistentFlags().Lookup("config")).NotTo(BeNil())
		Expect(cmd.PersistentFlags().Lookup("debug")).NotTo(BeNil())
		Expect(cmd.PersistentFlags().Lookup("store")).NotTo(BeNil())
	})
})

var _ = Describe("hash-token", func() {
	It("hashes the given token", func() {
		out, err := execute("hash-token", "s3cret")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).NotTo(ContainSubstring("token:"))

		hash := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(out), "hash:"))
		Expect(auth.CheckToken(hash, "s3cret")).To(Succeed())
	})

	It("generates a token when none is given", func() {
		out, err := execute("hash-token")
		Expect(err).NotTo(HaveOccurred())
		lines := strings.Split(strings.TrimSpace(out), "\n")
		Expect(lines).To(HaveLen(2))

		token := strings.TrimSpace(strings.TrimPrefix(lines[0], "token:"))
		hash := strings.TrimSpace(strings.TrimPrefix(lines[1], "hash:"))
		Expect(token).To(HaveLen(64))
		Expect(auth.CheckToken(hash, token)).To(Succeed())
	})

	It("rejects extra arguments", func() {
		_, err := execute("hash-token", "a", "b")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("tree commands", func() {
	var mr *miniredis.Miniredis

	BeforeEach(func() {
		mr = miniredis.RunT(GinkgoT())
		GinkgoT().Setenv("MINDTREE_STORE", "redis")
		GinkgoT().Setenv("MINDTREE_REDIS_URL", "redis://"+mr.Addr())
	})

	seed := func() (rootID string) {
		cfg, err := config.Load()
		Expect(err).NotTo(HaveOccurred())
		err = runWith(context.Background(), cfg, zap.NewNop(), func(ctx context.Context, rt *runtime) error {
			root, err := rt.service.CreateNode(ctx, "Ship v2", nil)
			if err != nil {
				return err
			}
			rootID = root.ID
			_, err = rt.service.CreateNode(ctx, "Support load", store.StringPtr(root.ID))
			return err
		})
		Expect(err).NotTo(HaveOccurred())
		return rootID
	}

	It("prints the stored tree as markdown", func() {
		seed()
		out, err := execute("tree")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("# mindtree"))
		Expect(out).To(ContainSubstring("- Ship v2\n  - Support load\n"))
	})

	It("prints the stored tree as json", func() {
		seed()
		out, err := execute("tree", "--format", "json")
		Expect(err).NotTo(HaveOccurred())
		var payload struct {
			Roots []map[string]any `json:"roots"`
		}
		Expect(json.Unmarshal([]byte(out), &payload)).To(Succeed())
		Expect(payload.Roots).To(HaveLen(1))
	})

	It("rejects formats it cannot print", func() {
		_, err := execute("tree", "--format", "pdf")
		Expect(err).To(HaveOccurred())
	})

	It("lists and reattaches orphans", func() {
		rootID := seed()
		out, err := execute("orphans")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("No orphans."))

		cfg, err := config.Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(runWith(context.Background(), cfg, zap.NewNop(), func(ctx context.Context, rt *runtime) error {
			_, err := rt.store.DeleteMany(ctx, []string{rootID})
			return err
		})).To(Succeed())

		out, err = execute("orphans")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(ContainSubstring("Support load"))
		Expect(out).To(ContainSubstring(rootID))

		out, err = execute("reconcile", "--mode", "reattach")
		Expect(err).NotTo(HaveOccurred())
		Expect(out).To(Equal("reattach: 0 purged, 1 reattached\n"))

		out, err = execute("orphans", "--json")
		Expect(err).NotTo(HaveOccurred())
		Expect(strings.TrimSpace(out)).To(Equal("[]"))
	})

	It("requires a reconcile mode", func() {
		_, err := execute("reconcile")
		Expect(err).To(HaveOccurred())
		_, err = execute("reconcile", "--mode", "explode")
		Expect(err).To(HaveOccurred())
	})

	It("lets the store flag override the environment", func() {
		out, err := execute("--store", "memory", "tree")
		Expect(err).NotTo(HaveOccurred())
		Expect(strings.TrimSpace(out)).To(Equal("# mindtree"))
	})
})

var _ = Describe("serve", func() {
	It("registers the listen address flag", func() {
		cmd := newServeCmd()
		flag := cmd.Flags().Lookup("addr")
		Expect(flag).NotTo(BeNil())
		Expect(flag.Shorthand).To(Equal("l"))
	})

	It("shuts down cleanly when its context ends", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cfg := config.Config{Store: store.BackendMemory, Addr: "127.0.0.1:0"}

		done := make(chan error, 1)
		go func() { done <- serve(ctx, cfg, zap.NewNop()) }()
		cancel()

		Eventually(done, "5s").Should(Receive(BeNil()))
	})
})
