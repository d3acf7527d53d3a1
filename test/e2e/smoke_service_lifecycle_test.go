//go:build e2e
// +build e2e

package e2e

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	appsv1 "k8s.io/api/apps/v1"
	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/apimachinery/pkg/types"

	hydrav1alpha1 "github.com/canonical/hydra-operator/api/v1alpha1"
)

var _ = Describe("Smoke: HydraService lifecycle", Label("smoke", "critical"), Ordered, func() {
	ctx := context.Background()

	const serviceName = "smoke-hydra"

	var namespace string

	BeforeAll(func() {
		ns := &corev1.Namespace{
			ObjectMeta: metav1.ObjectMeta{GenerateName: "hydra-e2e-"},
		}
		Expect(k8sClient.Create(ctx, ns)).To(Succeed())
		namespace = ns.Name
	})

	AfterAll(func() {
		ns := &corev1.Namespace{ObjectMeta: metav1.ObjectMeta{Name: namespace}}
		_ = k8sClient.Delete(ctx, ns)
	})

	It("accepts a minimal HydraService", func() {
		service := &hydrav1alpha1.HydraService{
			ObjectMeta: metav1.ObjectMeta{
				Name:      serviceName,
				Namespace: namespace,
			},
			Spec: hydrav1alpha1.HydraServiceSpec{
				Image: "oryd/hydra:v2.2.0",
				Dev:   true,
			},
		}
		Expect(k8sClient.Create(ctx, service)).To(Succeed())
	})

	It("renders the workload Deployment", func() {
		Eventually(func(g Gomega) {
			deploy := &appsv1.Deployment{}
			g.Expect(k8sClient.Get(ctx, types.NamespacedName{Name: serviceName, Namespace: namespace}, deploy)).To(Succeed())
			g.Expect(deploy.Spec.Template.Spec.Containers).To(HaveLen(1))
		}, 2*time.Minute, 5*time.Second).Should(Succeed())
	})

	It("reports Blocked while the database integration is missing", func() {
		Eventually(func(g Gomega) {
			service := &hydrav1alpha1.HydraService{}
			g.Expect(k8sClient.Get(ctx, types.NamespacedName{Name: serviceName, Namespace: namespace}, service)).To(Succeed())
			g.Expect(service.Status.Phase).To(Equal(hydrav1alpha1.ServicePhaseBlocked))
			g.Expect(conditionReason(service.Status.Conditions, string(hydrav1alpha1.ConditionDegraded))).To(Equal("OperatorActionRequired"))
		}, 2*time.Minute, 5*time.Second).Should(Succeed())
	})

	It("cleans up workload resources on delete", func() {
		service := &hydrav1alpha1.HydraService{
			ObjectMeta: metav1.ObjectMeta{Name: serviceName, Namespace: namespace},
		}
		Expect(k8sClient.Delete(ctx, service)).To(Succeed())

		Eventually(func(g Gomega) {
			deploy := &appsv1.Deployment{}
			err := k8sClient.Get(ctx, types.NamespacedName{Name: serviceName, Namespace: namespace}, deploy)
			g.Expect(err).To(HaveOccurred())
		}, 2*time.Minute, 5*time.Second).Should(Succeed())
	})
})
